// Package service exposes the episode pipeline over the message bus:
// requests arrive on episode.request and results are published back as
// they complete.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/castforge/castforge/internal/bus"
	"github.com/castforge/castforge/internal/library"
	"github.com/castforge/castforge/internal/pipeline"
	"github.com/castforge/castforge/internal/protocol"
)

// renderTimeout bounds one episode render. Long scripts with a slow
// provider can take minutes; anything past this is stuck.
const renderTimeout = 30 * time.Minute

type Service struct {
	bus    *bus.Client
	ledger *library.Store
	pipe   *pipeline.Orchestrator
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func New(parent context.Context, busClient *bus.Client, ledger *library.Store, pipe *pipeline.Orchestrator, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:    busClient,
		ledger: ledger,
		pipe:   pipe,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "episode-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectEpisodeRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.EpisodeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode episode request", slogError(err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, renderTimeout)
		defer cancel()

		s.publishProgress(protocol.EpisodeProgress{
			RequestID: req.RequestID,
			Stage:     protocol.StageAccepted,
			Timestamp: time.Now().UTC(),
		})

		pipe := s.pipe.WithSegmentHook(func(index int, title string, _ float64) {
			s.publishProgress(protocol.EpisodeProgress{
				RequestID:    req.RequestID,
				Stage:        protocol.StageSegment,
				SegmentIndex: index,
				SegmentTitle: title,
				Timestamp:    time.Now().UTC(),
			})
		})

		res, err := pipe.SynthesizeEpisode(ctx, req.Name, req.Segments)
		if err != nil {
			s.logger.Warn("episode render failed",
				slog.String("request_id", req.RequestID),
				slogError(err))
			s.publishProgress(protocol.EpisodeProgress{
				RequestID: req.RequestID,
				Stage:     protocol.StageFailed,
				Timestamp: time.Now().UTC(),
			})
			s.publishResult(protocol.EpisodeResult{
				RequestID: req.RequestID,
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
			return
		}

		warnings := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			warnings = append(warnings, w.Message)
		}
		if err := s.ledger.Record(ctx, library.Episode{
			RequestID:    req.RequestID,
			Title:        req.Name,
			AudioPath:    res.AudioPath,
			ChaptersPath: res.ChaptersPath,
			Duration:     res.Duration,
			SegmentCount: len(req.Segments),
			WarningCount: len(res.Warnings),
		}); err != nil {
			s.logger.Warn("failed to record episode", slogError(err))
		}

		s.publishProgress(protocol.EpisodeProgress{
			RequestID: req.RequestID,
			Stage:     protocol.StageComplete,
			Timestamp: time.Now().UTC(),
		})
		s.publishResult(protocol.EpisodeResult{
			RequestID:    req.RequestID,
			AudioPath:    res.AudioPath,
			ChaptersPath: res.ChaptersPath,
			Duration:     res.Duration,
			Chapters:     res.Chapters,
			Warnings:     warnings,
			Timestamp:    time.Now().UTC(),
		})
	}()
}

func (s *Service) publishProgress(p protocol.EpisodeProgress) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("failed to marshal episode progress", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectEpisodeProgress, data); err != nil {
		s.logger.Warn("failed to publish episode progress", slogError(err))
	}
}

func (s *Service) publishResult(r protocol.EpisodeResult) {
	if r.Error != "" {
		r.AudioPath = ""
		r.ChaptersPath = ""
	}
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Warn("failed to marshal episode result", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectEpisodeResult, data); err != nil {
		s.logger.Warn("failed to publish episode result", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
