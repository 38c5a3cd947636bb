// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dipmsg

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks messages seen by a client of the status stream
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalMessages  uint64
	StatusReports  uint64
	DecodeErrors   uint64
	UnknownShape   uint64
	SwitchChanges  uint64
	CommandsSent   uint64
	CommandsFailed uint64

	// Rates (calculated)
	MessageRate float64 // messages/sec
	ErrorRate   float64 // errors/sec

	last    Switches
	hasLast bool
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one received message and its decode result
func (s *Statistics) Update(sw Switches, decodeErr error) {
	s.TotalMessages++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrNotStatus) {
			s.UnknownShape++
		} else {
			s.DecodeErrors++
		}
		return
	}

	s.StatusReports++
	if s.hasLast && sw != s.last {
		s.SwitchChanges++
	}
	s.last = sw
	s.hasLast = true
}

// RecordCommand records one LED command sent to the device
func (s *Statistics) RecordCommand(err error) {
	if err != nil {
		s.CommandsFailed++
		return
	}
	s.CommandsSent++
}

// CalculateRates calculates message and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.MessageRate = float64(s.TotalMessages) / elapsed
		s.ErrorRate = float64(s.DecodeErrors+s.UnknownShape) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, errorPercent float64
	if s.TotalMessages > 0 {
		validPercent = float64(s.StatusReports) * 100.0 / float64(s.TotalMessages)
		errorPercent = float64(s.DecodeErrors+s.UnknownShape) * 100.0 / float64(s.TotalMessages)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Messages:  %8d\n", s.TotalMessages)
	result += fmt.Sprintf("Status Reports:  %8d (%.1f%%)\n", s.StatusReports, validPercent)
	result += fmt.Sprintf("Switch Changes:  %8d\n", s.SwitchChanges)

	if s.DecodeErrors > 0 || s.UnknownShape > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", s.DecodeErrors+s.UnknownShape, errorPercent)
		if s.UnknownShape > 0 {
			result += fmt.Sprintf("  Unknown Shape:    %5d\n", s.UnknownShape)
		}
	}
	if s.CommandsSent > 0 || s.CommandsFailed > 0 {
		result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
		if s.CommandsFailed > 0 {
			result += fmt.Sprintf("  Failed:           %5d\n", s.CommandsFailed)
		}
	}

	result += fmt.Sprintf("Message Rate:    %8.1f msgs/sec\n", s.MessageRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
