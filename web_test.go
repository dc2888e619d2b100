package main

import (
	"testing"

	"bms-service/bms"
)

func TestBuildStatus(t *testing.T) {
	store := bms.NewStore(3)
	store.SetCell(0, 3.61234)
	store.SetCell(1, 3.79876)
	store.SetCell(2, 4.0)
	store.SetTemperature(24.68)
	store.SetCurrentSetting(2.5)
	store.MarkTransceiver(true)

	s := buildStatus(store.Snapshot())

	if len(s.Cells) != 3 {
		t.Fatalf("cells: expected 3, got %d", len(s.Cells))
	}
	if s.Cells[0] != 3.612 {
		t.Errorf("cell 0: expected 3.612, got %f", s.Cells[0])
	}
	if s.Cells[1] != 3.799 {
		t.Errorf("cell 1: expected 3.799, got %f", s.Cells[1])
	}
	if s.Temp != 24.7 {
		t.Errorf("temp: expected 24.7, got %f", s.Temp)
	}
	if s.Min != 3.612 || s.Max != 4.0 {
		t.Errorf("min/max: expected 3.612/4.0, got %f/%f", s.Min, s.Max)
	}
	if s.Count != 3 {
		t.Errorf("count: expected 3, got %d", s.Count)
	}
	if s.Current != 2.5 {
		t.Errorf("current: expected 2.5, got %f", s.Current)
	}
	if !s.CAN {
		t.Error("can: expected true")
	}
}

func TestRoundHelpers(t *testing.T) {
	if got := round3(3.14159); got != 3.142 {
		t.Errorf("round3: expected 3.142, got %f", got)
	}
	if got := round1(55.54); got != 55.5 {
		t.Errorf("round1: expected 55.5, got %f", got)
	}
	if got := round3(0); got != 0 {
		t.Errorf("round3(0): expected 0, got %f", got)
	}
}
