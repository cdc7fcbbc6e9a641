package tables

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/tablestatus"
)

type Table struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	Number    string    `json:"number" bson:"number"`
	Capacity  int       `json:"capacity" bson:"capacity"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`

	ModelVersion int `json:"model_version" bson:"model_version"`
}

func (t *Table) GetID() uuid.UUID {
	return t.ID
}

func (t *Table) ResourceType() string {
	return "table"
}

func (t *Table) SetID(id uuid.UUID) {
	t.ID = id
}

func NewTable() *Table {
	return &Table{
		ID:     apt.GenerateNewID(),
		Status: tablestatus.Statuses.Available.Name,
	}
}

func (t *Table) EnsureID() {
	if t.ID == uuid.Nil {
		t.ID = apt.GenerateNewID()
	}
}

func (t *Table) BeforeCreate() {
	t.EnsureID()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
}

func (t *Table) BeforeUpdate() {
	t.UpdatedAt = time.Now()
}

func (t *Table) Occupy() {
	t.Status = tablestatus.Statuses.Occupied.Name
	t.UpdatedAt = time.Now()
}

func (t *Table) Free() {
	t.Status = tablestatus.Statuses.Available.Name
	t.UpdatedAt = time.Now()
}

func (t *Table) Reserve() {
	t.Status = tablestatus.Statuses.Reserved.Name
	t.UpdatedAt = time.Now()
}
