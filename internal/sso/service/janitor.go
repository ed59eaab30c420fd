package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabeldata/oauth-sso/internal/sso/domain"
	"github.com/tabeldata/oauth-sso/internal/sso/store"
)

// DefaultSweepInterval is how often the janitor scans for corrupt rows when
// no interval is configured.
const DefaultSweepInterval = 1 * time.Hour

// Janitor periodically sweeps the token tables and purges rows whose
// serialized payloads no longer decode. The read paths already purge corrupt
// rows on contact; the sweep catches rows no one is reading.
type Janitor struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewJanitor(st store.Store, logger *slog.Logger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop. Call Stop to end it.
func (j *Janitor) Start() {
	go j.run()
}

// Stop signals the loop to exit and waits for the in-flight sweep, if any,
// to finish.
func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.doneCh
}

func (j *Janitor) run() {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.Logger.Info("janitor started", "interval", j.Interval)

	for {
		select {
		case <-ticker.C:
			if err := j.Sweep(context.Background()); err != nil {
				j.Logger.Error("corruption sweep failed", "error", err)
			}
		case <-j.stopCh:
			j.Logger.Info("janitor stopped")
			return
		}
	}
}

// Sweep scans both token tables once and purges every row that fails to
// decode. Exported so operators can trigger it outside the ticker.
func (j *Janitor) Sweep(ctx context.Context) error {
	accessRecs, err := j.Store.AccessTokens().All(ctx)
	if err != nil {
		return err
	}

	var corruptAccess []string
	for _, rec := range accessRecs {
		if _, err := domain.DecodeToken(rec.Token); err != nil {
			corruptAccess = append(corruptAccess, rec.TokenKey)
			continue
		}
		if _, err := domain.DecodeAuthentication(rec.Authentication); err != nil {
			corruptAccess = append(corruptAccess, rec.TokenKey)
		}
	}
	purgeAccessTokens(ctx, j.Store, j.Logger, corruptAccess...)

	refreshRecs, err := j.Store.RefreshTokens().All(ctx)
	if err != nil {
		return err
	}

	var corruptRefresh []string
	for _, rec := range refreshRecs {
		if _, err := domain.DecodeToken(rec.Token); err != nil {
			corruptRefresh = append(corruptRefresh, rec.TokenKey)
			continue
		}
		if _, err := domain.DecodeAuthentication(rec.Authentication); err != nil {
			corruptRefresh = append(corruptRefresh, rec.TokenKey)
		}
	}
	purgeRefreshTokens(ctx, j.Store, j.Logger, corruptRefresh...)

	if len(corruptAccess) > 0 || len(corruptRefresh) > 0 {
		j.Logger.Info("corruption sweep complete",
			"access_purged", len(corruptAccess),
			"refresh_purged", len(corruptRefresh),
			"access_scanned", len(accessRecs),
			"refresh_scanned", len(refreshRecs),
		)
	}
	return nil
}
