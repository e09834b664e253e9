//go:build linux

package blink

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// OpenHCI opens the default HCI adapter through BlueZ's raw socket.
func OpenHCI(ctx context.Context) (Scanner, error) {
	return openWithin(ctx, func() (Scanner, error) {
		dev, err := linux.NewDevice()
		if err != nil {
			return nil, err
		}
		return &hciScanner{dev: dev}, nil
	})
}

type hciScanner struct {
	dev *linux.Device
}

// Scan reports duplicates too; every advertisement is a fresh sample.
func (s *hciScanner) Scan(ctx context.Context, handle func(Advertisement)) error {
	return s.dev.Scan(ctx, true, func(a ble.Advertisement) {
		handle(Advertisement{
			Address:          a.Addr().String(),
			Name:             a.LocalName(),
			ManufacturerData: a.ManufacturerData(),
		})
	})
}

func (s *hciScanner) Close() error {
	return s.dev.Stop()
}
