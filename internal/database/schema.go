package database

import (
	"context"

	"longform/internal/models"

	"gorm.io/gorm"
)

// ReactionUniqueIndex is the unique (target_kind, target_id, user_email) index that settles
// two first reactions racing for the same key.
const ReactionUniqueIndex = "idx_reactions_target_user"

// SchemaObject is one table or index the application needs.
type SchemaObject struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// SchemaStatus reports which required tables and indexes exist.
type SchemaStatus struct {
	Objects []SchemaObject `json:"objects"`
}

// Ready reports whether every required object exists.
func (s SchemaStatus) Ready() bool {
	for _, o := range s.Objects {
		if !o.Present {
			return false
		}
	}
	return true
}

// Missing returns the objects that do not exist yet.
func (s SchemaStatus) Missing() []SchemaObject {
	var missing []SchemaObject
	for _, o := range s.Objects {
		if !o.Present {
			missing = append(missing, o)
		}
	}
	return missing
}

// GetSchemaStatus inspects the connected database without changing it.
func GetSchemaStatus(ctx context.Context, db *gorm.DB) SchemaStatus {
	m := db.WithContext(ctx).Migrator()

	tables := []struct {
		name  string
		model any
	}{
		{"posts", &models.Post{}},
		{"comments", &models.Comment{}},
		{"reactions", &models.Reaction{}},
	}

	var status SchemaStatus
	for _, t := range tables {
		status.Objects = append(status.Objects, SchemaObject{Kind: "table", Name: t.name, Present: m.HasTable(t.model)})
	}
	status.Objects = append(status.Objects, SchemaObject{
		Kind:    "index",
		Name:    ReactionUniqueIndex,
		Present: m.HasIndex(&models.Reaction{}, ReactionUniqueIndex),
	})
	return status
}
