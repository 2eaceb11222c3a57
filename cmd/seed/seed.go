// Package seed loads community groups from a YAML file into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"example.com/postfeed/internal/logger"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/store"
	"example.com/postfeed/internal/validate"
	"gopkg.in/yaml.v3"
)

var logg = logger.New()

const maxTitleLen = 200

// Parse decodes a YAML list of groups and checks every entry.
//
//   - title: Лев Толстой
//     slug: tolstoy
//     description: Группа любителей классики
func Parse(r io.Reader) ([]models.Group, error) {
	var groups []models.Group
	if err := yaml.NewDecoder(r).Decode(&groups); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	seen := make(map[string]bool, len(groups))
	for i, g := range groups {
		if err := validate.NotEmpty(g.Slug); err != nil {
			return nil, fmt.Errorf("group %d: slug: %w", i+1, err)
		}
		if err := validate.NotEmpty(g.Title); err != nil {
			return nil, fmt.Errorf("group %q: title: %w", g.Slug, err)
		}
		if err := validate.MaxLength(maxTitleLen)(g.Title); err != nil {
			return nil, fmt.Errorf("group %q: title: %w", g.Slug, err)
		}
		if seen[g.Slug] {
			return nil, fmt.Errorf("group %q listed twice", g.Slug)
		}
		seen[g.Slug] = true
	}
	return groups, nil
}

// Apply creates the groups whose slug is not in the store yet and returns
// how many were created.
func Apply(ctx context.Context, st store.GroupRepository, groups []models.Group) (int, error) {
	created := 0
	for _, g := range groups {
		_, err := st.GetGroupBySlug(ctx, g.Slug)
		if err == nil {
			logg.Debug("seed", "Group "+g.Slug+" exists, skipping")
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return created, err
		}

		g.ID = 0
		if err := st.CreateGroup(ctx, &g); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				continue
			}
			return created, fmt.Errorf("failed to create group %q: %w", g.Slug, err)
		}
		created++
	}
	return created, nil
}

// Run seeds groups from the YAML file at path.
func Run(ctx context.Context, st store.GroupRepository, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	groups, err := Parse(f)
	if err != nil {
		return err
	}
	created, err := Apply(ctx, st, groups)
	if err != nil {
		return err
	}
	logg.Info("seed", fmt.Sprintf("Created %d of %d groups from %s", created, len(groups), path))
	return nil
}
