package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

const (
	settingsKey     = "scheduler:settings"
	settingsChannel = "scheduler:settings:updated"
)

// Provider keeps the current scheduler settings cached in memory, persisted
// in Redis, and refreshed through a Pub/Sub notification channel so that
// admin updates reach every instance without a restart.
type Provider struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu      sync.RWMutex
	current Settings
	loaded  bool
}

func NewProvider(client *redis.Client, logger zerolog.Logger) *Provider {
	return &Provider{
		redis:  client,
		logger: logger.With().Str("component", "settings_provider").Logger(),
	}
}

// Load reads the stored settings, seeding defaults on first start. The
// dispatcher refuses to run until Load has succeeded once.
func (p *Provider) Load(ctx context.Context) error {
	data, err := p.redis.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		defaults := Default()
		if err := p.store(ctx, defaults); err != nil {
			return fmt.Errorf("seed default settings: %w", err)
		}
		p.set(defaults)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	p.set(s)
	return nil
}

// Current returns the cached settings. model.ErrSettingsUnavailable is
// returned until the first successful Load.
func (p *Provider) Current() (Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return Settings{}, model.ErrSettingsUnavailable
	}
	return p.current, nil
}

// Update validates, persists and publishes new settings. The local cache is
// updated immediately; other instances pick the change up via Pub/Sub.
func (p *Provider) Update(ctx context.Context, s Settings) error {
	if s.TimePeriod <= 0 {
		return fmt.Errorf("time_period must be positive, got %s", s.TimePeriod)
	}
	if err := p.store(ctx, s); err != nil {
		return err
	}
	p.set(s)
	if err := p.redis.Publish(ctx, settingsChannel, "updated").Err(); err != nil {
		p.logger.Warn().Err(err).Msg("settings update notification failed")
	}
	return nil
}

// Watch blocks on the notification channel and reloads settings on every
// message until the context is canceled.
func (p *Provider) Watch(ctx context.Context) error {
	sub := p.redis.Subscribe(ctx, settingsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.Load(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("settings reload failed")
				continue
			}
			p.logger.Info().Msg("settings reloaded")
		}
	}
}

func (p *Provider) store(ctx context.Context, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := p.redis.Set(ctx, settingsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("store settings: %w", err)
	}
	return nil
}

func (p *Provider) set(s Settings) {
	p.mu.Lock()
	p.current = s
	p.loaded = true
	p.mu.Unlock()
}
