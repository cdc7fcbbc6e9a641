package tables

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/pkg/enums/tablestatus"
)

func TestRegistryOccupy(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantErr    error
		wantStatus string
	}{
		{
			name:       "availableTable",
			status:     "available",
			wantStatus: "occupied",
		},
		{
			name:    "occupiedTable",
			status:  "occupied",
			wantErr: fault.ErrTableUnavailable,
		},
		{
			name:    "reservedTable",
			status:  "reserved",
			wantErr: fault.ErrTableUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTableRepo()
			table := NewTable()
			table.Number = "Window-1"
			table.Status = tt.status
			repo.AddTable(table)

			reg := NewRegistry(repo, NewMockPublisher(), apt.NewNoopLogger())
			err := reg.Occupy(context.Background(), table.ID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Occupy() error = %v, want %v", err, tt.wantErr)
				}
				// Rejections must not change state
				stored, _ := repo.Get(context.Background(), table.ID)
				if stored.Status != tt.status {
					t.Errorf("status changed on rejection: %s", stored.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("Occupy() error = %v", err)
			}
			stored, _ := repo.Get(context.Background(), table.ID)
			if stored.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", stored.Status, tt.wantStatus)
			}
		})
	}
}

func TestRegistryOccupyUnknownTable(t *testing.T) {
	reg := NewRegistry(NewMockTableRepo(), NewMockPublisher(), apt.NewNoopLogger())
	err := reg.Occupy(context.Background(), uuid.New())
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Occupy() error = %v, want %v", err, fault.ErrNotFound)
	}
}

func TestRegistryFree(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "fromOccupied", status: "occupied"},
		{name: "fromReserved", status: "reserved"},
		{name: "alreadyAvailable", status: "available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTableRepo()
			table := NewTable()
			table.Status = tt.status
			repo.AddTable(table)

			reg := NewRegistry(repo, NewMockPublisher(), apt.NewNoopLogger())
			if err := reg.Free(context.Background(), table.ID); err != nil {
				t.Fatalf("Free() error = %v", err)
			}

			stored, _ := repo.Get(context.Background(), table.ID)
			if stored.Status != tablestatus.Statuses.Available.Name {
				t.Errorf("status = %s, want available", stored.Status)
			}
		})
	}
}

// Two concurrent occupy attempts on the same table: exactly one wins, the
// other sees ErrTableUnavailable after its retries observe the new status.
func TestRegistryOccupyExclusive(t *testing.T) {
	repo := NewMockTableRepo()
	table := NewTable()
	repo.AddTable(table)

	reg := NewRegistry(repo, NewMockPublisher(), apt.NewNoopLogger())

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reg.Occupy(context.Background(), table.ID)
		}(i)
	}
	wg.Wait()

	var wins, rejects int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, fault.ErrTableUnavailable), errors.Is(err, fault.ErrVersionConflict):
			rejects++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1 (rejects %d)", wins, rejects)
	}
}

func TestRegistryRetriesOnVersionConflict(t *testing.T) {
	repo := NewMockTableRepo()
	table := NewTable()
	repo.AddTable(table)

	conflicts := 0
	repo.SaveFunc = func(ctx context.Context, tb *Table) error {
		conflicts++
		// First attempt conflicts; later attempts fall through to the
		// default map-backed Save.
		repo.SaveFunc = nil
		return fault.ErrVersionConflict
	}

	reg := NewRegistry(repo, NewMockPublisher(), apt.NewNoopLogger())
	if err := reg.Occupy(context.Background(), table.ID); err != nil {
		t.Fatalf("Occupy() after conflict = %v", err)
	}
	if conflicts != 1 {
		t.Errorf("conflicts seen = %d, want 1", conflicts)
	}
}

func TestRegistryPublishesStatusEvents(t *testing.T) {
	repo := NewMockTableRepo()
	table := NewTable()
	repo.AddTable(table)

	pub := NewMockPublisher()
	reg := NewRegistry(repo, pub, apt.NewNoopLogger())

	if err := reg.Occupy(context.Background(), table.ID); err != nil {
		t.Fatalf("Occupy() error = %v", err)
	}
	if len(pub.PublishedEvents) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.PublishedEvents))
	}
	if pub.PublishedEvents[0].Topic != "tables.status" {
		t.Errorf("topic = %s", pub.PublishedEvents[0].Topic)
	}
}
