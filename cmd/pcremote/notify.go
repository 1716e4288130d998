package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"
)

// notifyFunc shows one desktop notification.
type notifyFunc func(title, message string) error

func beeepNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// desktopNotifier turns a few broadcasts into desktop notifications.
type desktopNotifier struct {
	notify notifyFunc
	logger *slog.Logger
}

func newDesktopNotifier(logger *slog.Logger) *desktopNotifier {
	return &desktopNotifier{notify: beeepNotify, logger: logger}
}

// notificationFor returns the notification for b, if it deserves one.
func notificationFor(b StateBroadcast) (title, message string, ok bool) {
	switch ev := b.(type) {
	case BroadcastCodePressed:
		return "Remote", fmt.Sprintf("Pressed %s", ev.Code), true
	case BroadcastDeviceChanged:
		if ev.Device.Kind == DeviceMicro {
			return "Microphone", ev.Device.Name, true
		}
		return "Audio device", ev.Device.Name, true
	case BroadcastMouseModeChanged:
		if ev.On {
			return "Mouse mode", "on", true
		}
		return "Mouse mode", "off", true
	default:
		return "", "", false
	}
}

func (n *desktopNotifier) Run(ctx context.Context, src <-chan StateBroadcast) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-src:
			if !ok {
				return nil
			}
			title, msg, ok := notificationFor(b)
			if !ok {
				continue
			}
			if err := n.notify(title, msg); err != nil {
				n.logger.Debug("desktop notification failed", "error", err)
			}
		}
	}
}
