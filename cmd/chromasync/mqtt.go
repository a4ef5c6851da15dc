package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/chroma-sync/internal/api"
	"github.com/nerrad567/chroma-sync/internal/broadcast"
	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/config"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/logging"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/chroma-sync/internal/syncctl"
)

// syncCommandTimeout bounds a sync change requested over MQTT.
const syncCommandTimeout = 30 * time.Second

// publisher is the MQTT capability the presenter needs.
type publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// commandSubscriber is the MQTT capability the sync command handler needs.
type commandSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// syncSetter is the sync control used by MQTT commands and state relay.
type syncSetter interface {
	Enabled() bool
	Set(ctx context.Context, enabled bool) (device.Report, error)
	Subscribe() (<-chan syncctl.Change, func())
}

func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", client.ClientID(),
	)
	return client, nil
}

// mqttPresenter mirrors broadcast activity, device reports and the sync
// flag onto MQTT topics. Status and sync state are retained.
type mqttPresenter struct {
	pub    publisher
	topics mqtt.Topics
	log    *logging.Logger

	// cmdMu guards cmdStopped; cmdWG tracks sync commands still running.
	cmdMu      sync.Mutex
	cmdStopped bool
	cmdWG      sync.WaitGroup
}

func newMQTTPresenter(pub publisher, topics mqtt.Topics, log *logging.Logger) *mqttPresenter {
	return &mqttPresenter{pub: pub, topics: topics, log: log}
}

// broadcastStatusMessage is the retained broadcast status payload.
type broadcastStatusMessage struct {
	broadcast.StatusPayload
	Init *broadcast.InitReport `json:"init,omitempty"`
}

func (p *mqttPresenter) publish(topic string, v any, retained bool) {
	if err := p.pub.PublishJSON(topic, v, retained); err != nil {
		p.log.Debug("mqtt publish failed", "topic", topic, "error", err)
	}
}

func (p *mqttPresenter) PresentStatus(status broadcast.Status) {
	p.publish(p.topics.BroadcastStatus(), broadcastStatusMessage{StatusPayload: broadcast.NewStatusPayload(status)}, true)
}

func (p *mqttPresenter) PresentPreview(effect device.ColorEffect) {
	p.publish(p.topics.BroadcastPreview(), broadcast.NewPreviewPayload(effect), false)
}

func (p *mqttPresenter) PresentReport(report device.Report) {
	p.publish(p.topics.Report(), api.NewReportPayload(report), false)
}

// PresentInit publishes the broadcast startup outcome so a failed
// subscription is visible to MQTT consumers.
func (p *mqttPresenter) PresentInit(status broadcast.Status, report broadcast.InitReport) {
	msg := broadcastStatusMessage{StatusPayload: broadcast.NewStatusPayload(status), Init: &report}
	p.publish(p.topics.BroadcastStatus(), msg, true)
}

// relaySyncState publishes the current sync flag, then every change,
// until ctx ends.
func (p *mqttPresenter) relaySyncState(ctx context.Context, ctl syncSetter) {
	changes, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	p.publish(p.topics.SyncState(), map[string]bool{"enabled": ctl.Enabled()}, true)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			p.publish(p.topics.SyncState(), api.NewSyncPayload(change), true)
		}
	}
}

// handleSyncCommands subscribes to the sync command topic. Payloads are
// on, off, true or false. The change runs off the MQTT delivery goroutine.
// Commands arriving after ctx ends or stopSyncCommands are dropped.
func (p *mqttPresenter) handleSyncCommands(ctx context.Context, sub commandSubscriber, qos byte, ctl syncSetter) error {
	return sub.Subscribe(p.topics.SyncCommand(), qos, func(_ string, payload []byte) error {
		enabled, err := parseSyncCommand(payload)
		if err != nil {
			return err
		}

		p.cmdMu.Lock()
		defer p.cmdMu.Unlock()
		if p.cmdStopped || ctx.Err() != nil {
			p.log.Debug("sync command ignored during shutdown", "enabled", enabled)
			return nil
		}
		p.cmdWG.Add(1)
		go func() {
			defer p.cmdWG.Done()
			setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncCommandTimeout)
			defer cancel()
			if _, err := ctl.Set(setCtx, enabled); err != nil {
				p.log.Warn("sync command not persisted", "enabled", enabled, "error", err)
			}
		}()
		return nil
	})
}

// stopSyncCommands unsubscribes from the sync command topic and waits for
// commands already running. Call it before the final device unload.
func (p *mqttPresenter) stopSyncCommands(sub commandSubscriber) {
	p.cmdMu.Lock()
	p.cmdStopped = true
	p.cmdMu.Unlock()

	if err := sub.Unsubscribe(p.topics.SyncCommand()); err != nil {
		p.log.Debug("sync command unsubscribe failed", "error", err)
	}
	p.cmdWG.Wait()
}

func parseSyncCommand(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("sync command %q: want on or off", payload)
	}
}
