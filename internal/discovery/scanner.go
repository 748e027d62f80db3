// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
)

// PortScanner lists ports of one kind
type PortScanner interface {
	Scan(ctx context.Context) ([]model.PortDescriptor, error)
	GetScannerType() string
}

// ScannerManager runs every registered scanner and merges the results
type ScannerManager struct {
	scanners []PortScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		logger: logger.With(zap.String("component", "scanner_manager")),
	}
}

// RegisterScanner registers a port scanner
func (sm *ScannerManager) RegisterScanner(scanner PortScanner) {
	sm.scanners = append(sm.scanners, scanner)
	sm.logger.Debug("Scanner registered", zap.String("type", scanner.GetScannerType()))
}

// Scan runs all scanners in registration order. A failing scanner is
// logged and skipped; the call fails only when every scanner failed.
func (sm *ScannerManager) Scan(ctx context.Context) ([]model.PortDescriptor, error) {
	ports := make([]model.PortDescriptor, 0)
	var firstErr error
	failed := 0

	for _, scanner := range sm.scanners {
		found, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Warn("Scanner failed",
				zap.String("type", scanner.GetScannerType()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s scan failed: %w", scanner.GetScannerType(), err)
			}
			failed++
			continue
		}
		ports = append(ports, found...)
	}

	if failed > 0 && failed == len(sm.scanners) {
		return nil, firstErr
	}

	sort.SliceStable(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// GetAvailableScanners returns the registered scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	types := make([]string, 0, len(sm.scanners))
	for _, s := range sm.scanners {
		types = append(types, s.GetScannerType())
	}
	return types
}
