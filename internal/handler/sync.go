package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/auth"
	"github.com/sakif/playtracker/internal/clockify"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/queue"
	"github.com/sakif/playtracker/internal/ranking"
	"github.com/sakif/playtracker/internal/syncer"
)

// maxBodyBytes caps request bodies; trigger payloads are tiny.
const maxBodyBytes = 1 << 20

// Webhook syncs that find another run active wait for it and try again.
const (
	defaultWebhookRetryInterval = 5 * time.Second
	webhookRetries              = 12
)

// SignatureHeader carries the webhook's shared secret on Clockify deliveries.
const SignatureHeader = "Clockify-Signature"

// Runner is the part of *syncer.Syncer the handlers drive.
type Runner interface {
	Run(ctx context.Context, opts syncer.Options) (syncer.Report, error)
	RunRankings(ctx context.Context, silent bool) ([]ranking.Result, error)
}

// SyncRequest is the trigger payload. Every field is optional; an empty
// body runs an incremental sync of every active user.
type SyncRequest struct {
	StartDate  string `json:"start_date"` // YYYY-MM-DD
	SyncAll    bool   `json:"sync_all"`
	SyncSeason bool   `json:"sync_season"`
	UserScope  string `json:"user_scope"`
	Silent     bool   `json:"silent"`
}

type SyncResponse struct {
	RunID        string `json:"runId"`
	Since        string `json:"since,omitempty"`
	Users        int    `json:"users"`
	Entries      int    `json:"entries"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	FailedUsers  int    `json:"failedUsers"`
	Completed    int    `json:"completed"`
	Achievements int    `json:"achievements"`
}

type RankingLine struct {
	Rank     int    `json:"rank"`
	PrevRank int    `json:"prevRank"`
	Name     string `json:"name"`
	Played   string `json:"played"`
	Marker   string `json:"marker"`
}

type RankingResponse struct {
	Kind     model.RankingKind `json:"kind"`
	Changed  bool              `json:"changed"`
	Notified bool              `json:"notified"`
	Lines    []RankingLine     `json:"lines"`
}

// SyncHandler serves the trigger surface: manual syncs, ranking passes and
// the Clockify webhook.
type SyncHandler struct {
	runner       Runner
	queue        queue.Queue
	webhookToken string
	loc          *time.Location
	logger       *slog.Logger

	// background webhook syncs
	wg            sync.WaitGroup
	retryInterval time.Duration
}

func NewSyncHandler(runner Runner, q queue.Queue, webhookToken string, loc *time.Location, logger *slog.Logger) *SyncHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SyncHandler{
		runner:        runner,
		queue:         q,
		webhookToken:  webhookToken,
		loc:           loc,
		logger:        logger,
		retryInterval: defaultWebhookRetryInterval,
	}
}

// SetWebhookRetryInterval sets how long a webhook sync waits before trying
// again when another run is active.
func (h *SyncHandler) SetWebhookRetryInterval(d time.Duration) {
	h.retryInterval = d
}

// HandleSync runs a sync and answers with its report once it finishes.
// POST /api/sync
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	opts := syncer.Options{
		SyncAll:    req.SyncAll,
		SyncSeason: req.SyncSeason,
		UserScope:  req.UserScope,
		Silent:     req.Silent,
	}
	if req.StartDate != "" {
		start, err := time.ParseInLocation(model.DateLayout, req.StartDate, h.loc)
		if err != nil {
			writeError(w, apperror.ValidationFailed("start_date", "start_date must be YYYY-MM-DD"))
			return
		}
		opts.StartDate = start
	}

	caller, _ := auth.UserIDFromContext(r.Context())
	h.logger.Info("sync requested",
		"caller", caller,
		"sync_all", opts.SyncAll,
		"sync_season", opts.SyncSeason,
		"user_scope", opts.UserScope,
		"silent", opts.Silent,
	)

	report, err := h.runner.Run(r.Context(), opts)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	resp := SyncResponse{
		RunID:        report.RunID,
		Users:        report.Users,
		Entries:      report.Entries,
		Skipped:      report.Skipped,
		Failed:       report.Failed,
		FailedUsers:  report.FailedUsers,
		Completed:    report.Completed,
		Achievements: report.Achievements,
	}
	if !report.Since.IsZero() {
		resp.Since = report.Since.Format(model.DateLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRankings runs both ranking passes.
// POST /api/rankings?silent=true
func (h *SyncHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	silent := r.URL.Query().Get("silent") == "true"

	results, err := h.runner.RunRankings(r.Context(), silent)
	if err != nil && len(results) == 0 {
		h.writeRunError(w, err)
		return
	}

	resp := make([]RankingResponse, 0, len(results))
	for _, res := range results {
		rr := RankingResponse{Kind: res.Kind, Changed: res.Changed, Notified: res.Notified}
		for _, l := range res.Lines {
			rr.Lines = append(rr.Lines, RankingLine{
				Rank:     l.Rank,
				PrevRank: l.PrevRank,
				Name:     l.Item.Name,
				Played:   model.FormatPlayedTime(l.Item.Value),
				Marker:   l.Marker,
			})
		}
		resp = append(resp, rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleClockifyWebhook accepts a time-entry event and syncs its owner in
// the background. Deliveries are deduped on entry id and end time while
// the triggered sync is in flight.
// POST /webhooks/clockify
func (h *SyncHandler) HandleClockifyWebhook(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get(SignatureHeader)
	if h.webhookToken == "" || subtle.ConstantTimeCompare([]byte(sig), []byte(h.webhookToken)) != 1 {
		writeError(w, apperror.Forbidden("invalid webhook signature"))
		return
	}

	var entry clockify.TimeEntry
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&entry); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if entry.ID == "" || entry.UserID == "" {
		writeError(w, apperror.ValidationFailed("body", "time entry id and userId are required"))
		return
	}

	key := deliveryKey(entry)
	added, err := h.queue.Add(r.Context(), key)
	if err != nil {
		h.logger.Error("queueing webhook delivery", "key", key, "error", err)
		writeError(w, err)
		return
	}
	if !added {
		h.logger.Info("duplicate webhook delivery", "key", key)
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	h.wg.Add(1)
	go func(ctx context.Context) {
		defer h.wg.Done()
		defer func() {
			if err := h.queue.Remove(ctx, key); err != nil {
				h.logger.Error("releasing webhook delivery", "key", key, "error", err)
			}
		}()

		report, err := h.runWebhookSync(ctx, entry)
		if err != nil {
			h.logger.Warn("webhook sync did not run",
				"entry_id", entry.ID, "user_id", entry.UserID, "error", err)
			return
		}
		h.logger.Info("webhook sync done", "entry_id", entry.ID, "run_id", report.RunID)
	}(context.WithoutCancel(r.Context()))

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// runWebhookSync syncs the entry's owner. A run already in progress may
// have fetched before the entry changed, so ErrRunning is retried; any
// other error is final.
func (h *SyncHandler) runWebhookSync(ctx context.Context, entry clockify.TimeEntry) (syncer.Report, error) {
	var report syncer.Report
	op := func() error {
		var err error
		report, err = h.runner.Run(ctx, syncer.Options{UserScope: entry.UserID})
		if err != nil && !errors.Is(err, syncer.ErrRunning) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		h.logger.Info("webhook sync waiting for active run",
			"entry_id", entry.ID, "user_id", entry.UserID, "retry_in", wait)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(h.retryInterval), webhookRetries), ctx)
	err := backoff.RetryNotify(op, b, notify)
	return report, err
}

// Wait blocks until background webhook syncs finish or ctx is done.
func (h *SyncHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleHealth reports liveness.
// GET /healthz
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SyncHandler) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, syncer.ErrRunning) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "a run is already in progress",
		})
		return
	}
	h.logger.Error("run failed", "error", err)
	writeError(w, err)
}

func deliveryKey(e clockify.TimeEntry) string {
	if e.TimeInterval.End != nil && *e.TimeInterval.End != "" {
		return e.ID + "@" + *e.TimeInterval.End
	}
	return e.ID + "@open"
}

// decodeOptional decodes a JSON body into v; an empty body leaves v as is.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
