package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/catalog"
	"github.com/abhisek/orgdiag/internal/company"
	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/session"
)

const (
	// CategoryReason is stored on category associations added by a diagnostic.
	CategoryReason = "Categoria identificada no diagnóstico com IA"

	// TrackReason is stored on track associations added by a diagnostic.
	TrackReason = "Trilha recomendada pelo diagnóstico com IA"
)

// FinalizeInput is everything needed to finalize one interview.
type FinalizeInput struct {
	CompanyID string
	SessionID string
	History   []session.Turn
	Result    *protocol.StructuredResult
}

// AssociationSummary reports what the association step changed.
type AssociationSummary struct {
	AddedCategories []string
	AddedTracks     []string
	UnresolvedNames []string
}

// AssociationWarning is a non-fatal failure of the association step. The
// diagnostic record already exists when it happens.
type AssociationWarning struct {
	CompanyID string
	Step      string
	Err       error
}

func (w *AssociationWarning) Error() string {
	return fmt.Sprintf("associate company %s: %s: %v", w.CompanyID, w.Step, w.Err)
}

func (w *AssociationWarning) Unwrap() error { return w.Err }

var errCompanyNotFound = errors.New("company not found")

// Finalizer runs the finalization transaction.
type Finalizer struct {
	records   Repository
	tracks    catalog.Repository
	companies company.Repository
	logger    *zap.Logger
	now       func() time.Time
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(records Repository, tracks catalog.Repository, companies company.Repository, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{
		records:   records,
		tracks:    tracks,
		companies: companies,
		logger:    logger,
		now:       time.Now,
	}
}

// Finalize creates the diagnostic record and then merges the recommended
// categories and tracks into the company profile. Only record creation can
// fail the call; association failures are logged and the record id is
// still returned.
func (f *Finalizer) Finalize(ctx context.Context, in FinalizeInput) (string, error) {
	if in.Result == nil || !in.Result.Finalized() {
		return "", errors.New("finalize: result is not finalized")
	}

	rec := &Record{
		ID:          uuid.NewString(),
		CompanyID:   in.CompanyID,
		SessionID:   in.SessionID,
		History:     append([]session.Turn(nil), in.History...),
		Data:        in.Result.CollectedData,
		FinalReport: *in.Result.FinalReport,
		CreatedAt:   f.now(),
	}
	if err := f.records.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create diagnostic record: %w", err)
	}

	summary, err := f.associate(ctx, in.CompanyID, in.Result.CollectedData)
	if err != nil {
		f.logger.Warn("company associations not updated",
			zap.String("diagnostic_id", rec.ID),
			zap.String("company_id", in.CompanyID),
			zap.Error(err))
	} else {
		f.logger.Info("diagnostic finalized",
			zap.String("diagnostic_id", rec.ID),
			zap.String("company_id", in.CompanyID),
			zap.Strings("added_categories", summary.AddedCategories),
			zap.Strings("added_tracks", summary.AddedTracks),
			zap.Strings("unresolved_tracks", summary.UnresolvedNames))
	}

	return rec.ID, nil
}

// associate resolves recommended tracks and merges the resulting categories
// and tracks into the company. Any error is an *AssociationWarning.
func (f *Finalizer) associate(ctx context.Context, companyID string, data protocol.CollectedData) (AssociationSummary, error) {
	var summary AssociationSummary
	warn := func(step string, err error) (AssociationSummary, error) {
		return summary, &AssociationWarning{CompanyID: companyID, Step: step, Err: err}
	}

	var resolved []catalog.Track
	for _, rt := range data.RecommendedTracks {
		t, err := f.tracks.FindByName(ctx, rt.TrackName)
		if err != nil {
			return warn("resolve track "+rt.TrackName, err)
		}
		if t == nil {
			summary.UnresolvedNames = append(summary.UnresolvedNames, rt.TrackName)
			continue
		}
		resolved = append(resolved, *t)
	}

	categories := unionCategories(data.CategoriesToAssociate, resolved)
	trackIDs := make([]string, 0, len(resolved))
	for _, t := range resolved {
		trackIDs = append(trackIDs, t.ID)
	}

	if len(categories) == 0 && len(trackIDs) == 0 {
		return summary, nil
	}

	c, err := f.companies.FindByID(ctx, companyID)
	if err != nil {
		return warn("load company", err)
	}
	if c == nil {
		return warn("load company", errCompanyNotFound)
	}

	now := f.now()
	summary.AddedCategories = c.MergeCategories(categories, CategoryReason, now)
	summary.AddedTracks = c.MergeTracks(trackIDs, company.OriginAIDerived, TrackReason, now)

	if len(summary.AddedCategories) == 0 && len(summary.AddedTracks) == 0 {
		return summary, nil
	}
	if err := f.companies.Save(ctx, c); err != nil {
		return warn("save company", err)
	}
	return summary, nil
}

// unionCategories returns the requested categories followed by the
// categories of resolved tracks, without blanks or repeats.
func unionCategories(requested []string, tracks []catalog.Track) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, c := range requested {
		add(c)
	}
	for _, t := range tracks {
		add(t.Category)
	}
	return out
}
