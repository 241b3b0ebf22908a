// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the mood-genre
// affinity matrix: seeded once when empty, loaded into memory at startup, and
// writable only through an explicit administrative upsert.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
)

// CountAffinityEntries returns how many matrix cells are persisted.
func CountAffinityEntries(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.AffinityEntry{}).Count(&total).Error
	return total, err
}

// SeedAffinity inserts the given matrix rows when the table is empty.
// Existing rows win: a populated table is left untouched so administrative
// edits survive restarts.
func SeedAffinity(ctx context.Context, db *gorm.DB, matrix map[string]map[string]float64) error {
	total, err := CountAffinityEntries(ctx, db)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for mood, genres := range matrix {
			for genre, score := range genres {
				e := &domain.AffinityEntry{
					Mood:      mood,
					Genre:     genre,
					Score:     score,
					CreatedAt: now,
				}
				if err := tx.Create(e).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListAffinityEntries returns all persisted matrix cells.
func ListAffinityEntries(ctx context.Context, db *gorm.DB) ([]domain.AffinityEntry, error) {
	var out []domain.AffinityEntry
	err := db.WithContext(ctx).
		Order("mood asc, genre asc").
		Find(&out).Error
	return out, err
}

// UpsertAffinity writes one matrix cell, inserting or overwriting. This is
// the administrative update path; runtime scoring never mutates the table.
func UpsertAffinity(ctx context.Context, db *gorm.DB, mood, genre string, score float64) error {
	e := &domain.AffinityEntry{Mood: mood, Genre: genre, Score: score}
	return db.WithContext(ctx).Save(e).Error
}
