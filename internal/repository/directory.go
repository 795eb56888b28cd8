package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindbridge/peerchat-server/internal/database"
	"github.com/mindbridge/peerchat-server/internal/model"
)

// CandidateFilter narrows the eligible-helper query. Opt-in is always
// required; the busy/self exclusions are applied by the caller, which owns
// the ledger.
type CandidateFilter struct {
	// Professional selects professionals only when true, peers only when false.
	Professional bool
	// RecoveredTag requires exact membership of this tag.
	RecoveredTag string
	// AnyRecoveredTag requires at least one recovery tag of any category.
	AnyRecoveredTag bool
	// ExcludeRecoveredTag rejects profiles carrying this tag.
	ExcludeRecoveredTag string
}

// DirectoryRepository is the read-only boundary with the eligibility store.
// The core queries it per decision and never writes through it.
type DirectoryRepository interface {
	Lookup(ctx context.Context, userID string) (*model.UserProfile, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]string, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserProfile, error)
}

type directoryRepo struct {
	db *database.DB
}

func NewDirectoryRepository(db *database.DB) DirectoryRepository {
	return &directoryRepo{db: db}
}

func (r *directoryRepo) Lookup(ctx context.Context, userID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT id, role, chat_opt_in, recovery_tags FROM users WHERE id = $1
	`, userID)
	return HandleNotFound(&profile, err)
}

func (r *directoryRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT id, role, chat_opt_in, recovery_tags FROM users WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&profile, err)
}

func (r *directoryRepo) ListCandidates(ctx context.Context, filter CandidateFilter) ([]string, error) {
	query, args := candidateQuery(filter)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func candidateQuery(filter CandidateFilter) (string, []interface{}) {
	clauses := []string{"chat_opt_in = TRUE"}
	var args []interface{}

	if filter.Professional {
		clauses = append(clauses, fmt.Sprintf("role = '%s'", model.RoleProfessional))
	} else {
		clauses = append(clauses, fmt.Sprintf("role <> '%s'", model.RoleProfessional))
	}

	if filter.RecoveredTag != "" {
		args = append(args, filter.RecoveredTag)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(string_to_array(recovery_tags, ','))", len(args)))
	}

	if filter.AnyRecoveredTag {
		clauses = append(clauses, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM unnest(string_to_array(recovery_tags, ',')) AS tag WHERE tag LIKE '%s%%')`,
			escapeLike(model.RecoveredTagPrefix)))
	}

	if filter.ExcludeRecoveredTag != "" {
		args = append(args, filter.ExcludeRecoveredTag)
		clauses = append(clauses, fmt.Sprintf("NOT ($%d = ANY(string_to_array(recovery_tags, ',')))", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id FROM users
		WHERE %s
		ORDER BY id
	`, strings.Join(clauses, "\n		AND "))

	return query, args
}

// escapeLike escapes LIKE wildcards so the pattern matches the string
// literally. Without it the underscore in the tag prefix matches any single
// character.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
