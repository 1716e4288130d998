package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Columns of the SoundVolumeView comma export.
const (
	colName      = 0
	colType      = 1
	colDirection = 2
	colDefault   = 5
	colState     = 7
)

var utf8BOM = []byte("\ufeff")

// parseDeviceList turns the device-listing CSV into devices, in listing order. The first
// row is a header. Rows the CSV reader rejects are logged and skipped. The returned
// active device is the first active audio device, if any.
func parseDeviceList(out []byte, filter DeviceFilter, logger *slog.Logger) (*Device, []Device, error) {
	out = bytes.TrimPrefix(out, utf8BOM)
	text := strings.ToValidUTF8(string(out), "\uFFFD")

	r := csv.NewReader(strings.NewReader(text))
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoDevices
		}
		return nil, nil, errors.Join(ErrReadDevicesList, err)
	}

	var (
		devices []Device
		active  *Device
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error("CSV parsing error", "error", err)
			continue
		}

		if field(record, colType) != "Device" {
			continue
		}

		var kind DeviceKind
		switch field(record, colDirection) {
		case "Render":
			kind = DeviceAudio
		case "Capture":
			kind = DeviceMicro
		default:
			continue
		}

		def := field(record, colDefault)
		isActive := field(record, colState) == "Active" && (def == "Render" || def == "Capture")

		name := record[colName]
		if filter != nil && !filter(name, kind) {
			continue
		}
		if name == "" {
			continue
		}

		dev := Device{Name: name, Kind: kind, Active: isActive}
		if isActive && kind == DeviceAudio && active == nil {
			d := dev
			active = &d
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, nil, ErrNoDevices
	}
	return active, devices, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
