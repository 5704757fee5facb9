/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Directory Search Service Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

func names(members []Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Name()
	}
	return out
}

func TestSearchMatchAllInNameOrder(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	members, err := svc.Search(ctx, SearchRequest{}, predicate.ModeAND)
	require.NoError(t, err)

	// Byte-wise ordering puts upper case before lower case
	assert.Equal(t, []string{"Amir Baker", "Lena Cho", "Zoe Adams", "amir Aalto"}, names(members))
}

func TestSearchIsDeterministic(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()
	req := SearchRequest{Keyword: "esg"}

	first, err := svc.Search(ctx, req, predicate.ModeAND)
	require.NoError(t, err)
	second, err := svc.Search(ctx, req, predicate.ModeAND)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprint(first), fmt.Sprint(second))
}

func TestSearchAbsentValuesAreEmptyStrings(t *testing.T) {
	svc, _ := newSQLiteService(t)

	members, err := svc.Search(context.Background(), SearchRequest{Keyword: "biodiversity"}, predicate.ModeAND)
	require.NoError(t, err)
	require.Len(t, members, 1)

	m := members[0]
	value, present := m["linkedin"]
	assert.True(t, present)
	assert.Equal(t, "", value)
	assert.Equal(t, "", m["years_sustainability_xp"])
	assert.NotContains(t, fmt.Sprint(m), "<nil>")
}

func TestSearchAndVersusOr(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, err := store.DB().Exec(`INSERT INTO final (first_name, last_name, email, key_competencies)
		VALUES ('Esme', 'Green', 'esme@example.org', 'ESG reporting')`)
	require.NoError(t, err)

	and, err := svc.Search(ctx, SearchRequest{Keyword: "carbon accounting, ESG"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Amir Baker"}, names(and))

	or, err := svc.Search(ctx, SearchRequest{Keyword: "carbon accounting, ESG"}, predicate.ModeOR)
	require.NoError(t, err)
	assert.Equal(t, []string{"Amir Baker", "Esme Green", "Zoe Adams"}, names(or))
}

func TestSearchKeywordIsCaseInsensitive(t *testing.T) {
	svc, _ := newSQLiteService(t)

	members, err := svc.Search(context.Background(), SearchRequest{Keyword: "CLIMATE RISK"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lena Cho"}, names(members))
}

func TestSearchKeywordFoldsNonASCII(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, err := store.DB().Exec(`INSERT INTO final (first_name, last_name, email, key_competencies)
		VALUES ('Élodie', 'Roux', 'elodie@example.org', 'Énergie renouvelable')`)
	require.NoError(t, err)

	members, err := svc.Search(ctx, SearchRequest{Keyword: "Énergie, énergie, ÉNERGIE"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Élodie Roux"}, names(members))

	members, err = svc.Search(ctx, SearchRequest{Keyword: "RENOUVELABLE"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Élodie Roux"}, names(members))
}

func TestSearchSubstringFilterIgnoresCase(t *testing.T) {
	svc, _ := newSQLiteService(t)

	members, err := svc.Search(context.Background(), SearchRequest{
		Filters: predicate.Filters{registry.FilterSource: {"linkedin"}},
	}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoe Adams", "amir Aalto"}, names(members))

	members, err = svc.Search(context.Background(), SearchRequest{
		Filters: predicate.Filters{registry.FilterSectors: {"ENERGY"}},
	}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Amir Baker", "Zoe Adams"}, names(members))
}

func TestSearchExperienceFilterExact(t *testing.T) {
	svc, _ := newSQLiteService(t)

	members, err := svc.Search(context.Background(), SearchRequest{
		Filters: predicate.Filters{registry.FilterExperience: {"5-10 years"}},
	}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lena Cho", "Zoe Adams"}, names(members))

	// "5-10" is a substring of the bucket but not an exact match
	members, err = svc.Search(context.Background(), SearchRequest{
		Filters: predicate.Filters{registry.FilterExperience: {"5-10"}},
	}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSearchSubstringFilters(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	members, err := svc.Search(ctx, SearchRequest{
		Filters: predicate.Filters{registry.FilterSource: {"LinkedIn"}},
	}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoe Adams", "amir Aalto"}, names(members))

	members, err = svc.Search(ctx, SearchRequest{
		Keyword: "analyst",
		Filters: predicate.Filters{registry.FilterSectors: {"Energy"}, registry.FilterSource: {"Referral"}},
	}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoe Adams"}, names(members))
}

func TestSearchWildcardKeywordIsLiteral(t *testing.T) {
	svc, _ := newSQLiteService(t)

	members, err := svc.Search(context.Background(), SearchRequest{Keyword: "%"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Empty(t, members)

	members, err = svc.Search(context.Background(), SearchRequest{Keyword: "x' OR 1=1 --"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSearchOrModeCapped(t *testing.T) {
	svc, store := newSQLiteService(t)

	for i := 0; i < MaxCandidates+10; i++ {
		_, err := store.DB().Exec(`INSERT INTO final (first_name, last_name, email, key_competencies)
			VALUES (?, 'Bulk', ?, 'solar')`, fmt.Sprintf("M%03d", i), fmt.Sprintf("m%d@example.org", i))
		require.NoError(t, err)
	}

	or, err := svc.Search(context.Background(), SearchRequest{Keyword: "solar"}, predicate.ModeOR)
	require.NoError(t, err)
	assert.Len(t, or, MaxCandidates)
	assert.Equal(t, "M000 Bulk", or[0].Name())

	and, err := svc.Search(context.Background(), SearchRequest{Keyword: "solar"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Len(t, and, MaxCandidates+10)
}

func TestRefreshPicksUpNewColumns(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, err := store.DB().Exec(`ALTER TABLE final ADD COLUMN languages TEXT`)
	require.NoError(t, err)
	_, err = store.DB().Exec(`UPDATE final SET languages = 'Swahili' WHERE email = 'lena@example.org'`)
	require.NoError(t, err)

	members, err := svc.Search(ctx, SearchRequest{Keyword: "swahili"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Empty(t, members, "registry not refreshed yet")

	require.NoError(t, svc.Refresh(ctx))
	members, err = svc.Search(ctx, SearchRequest{Keyword: "swahili"}, predicate.ModeAND)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lena Cho"}, names(members))
}

func TestStats(t *testing.T) {
	svc, _ := newSQLiteService(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalRecords: 4, RecordsWithLinkedins: 2, RecordsWithResumes: 2}, stats)
}

func TestGetByEmail(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	m, err := svc.GetByEmail(ctx, "lena@example.org")
	require.NoError(t, err)
	assert.Equal(t, "Lena Cho", m.Name())
	assert.Equal(t, "lena@example.org", m.Email())
	assert.NotZero(t, m.ID())

	_, err = svc.GetByEmail(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = svc.GetByEmail(ctx, " ")
	assert.ErrorIs(t, err, apperr.InputValidation)
}

func TestFilterOptions(t *testing.T) {
	svc, _ := newSQLiteService(t)

	opts, err := svc.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"LinkedIn", "Referral", "Website"}, opts[registry.FilterSource])
	assert.Equal(t, []string{"1-5 years", "10+ years", "5-10 years"}, opts[registry.FilterExperience])
	assert.Equal(t, []string{"Agriculture", "Energy", "Finance", "Forestry"}, opts[registry.FilterSectors])
}

func TestMissingTable(t *testing.T) {
	_, store := newSQLiteService(t)

	_, err := NewService(context.Background(), store, "members_v2")
	assert.ErrorIs(t, err, apperr.StoreUnavailable)
}

type failingStore struct {
	*SQLiteStore
}

func (f failingStore) QueryMembers(context.Context, string, ...any) ([]Member, error) {
	return nil, errors.New("connection refused")
}

func TestSearchStoreUnavailable(t *testing.T) {
	svc, store := newSQLiteService(t)
	svc.store = failingStore{store}

	_, err := svc.Search(context.Background(), SearchRequest{Keyword: "esg"}, predicate.ModeAND)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.StoreUnavailable)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "42", stringify(int64(42)))
	assert.Equal(t, "abc", stringify([]byte("abc")))
	assert.Equal(t, "1.5", stringify(1.5))
	assert.Equal(t, "true", stringify(true))

	for _, token := range []string{"None", "null", " NULL ", "nan", "NaN"} {
		assert.Equal(t, "", stringify(token), token)
		assert.Equal(t, "", stringify([]byte(token)), token)
	}
	assert.Equal(t, "Nonesuch", stringify("Nonesuch"))
	assert.Equal(t, "", stringify("   "))
}

func TestSearchNullTokensReadAsEmpty(t *testing.T) {
	svc, store := newSQLiteService(t)

	_, err := store.DB().Exec(`INSERT INTO final (first_name, last_name, email, linkedin, resume, key_competencies)
		VALUES ('Noor', 'Haddad', 'noor@example.org', 'None', 'null', 'Water stewardship')`)
	require.NoError(t, err)

	members, err := svc.Search(context.Background(), SearchRequest{Keyword: "water stewardship"}, predicate.ModeAND)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "", members[0]["linkedin"])
	assert.Equal(t, "", members[0]["resume"])
}
