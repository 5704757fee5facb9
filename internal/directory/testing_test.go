/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Directory Test Fixtures
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const memberSchema = `
CREATE TABLE final (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT,
	last_name TEXT,
	email TEXT UNIQUE,
	email_other TEXT,
	linkedin TEXT,
	city TEXT,
	country TEXT,
	current_job TEXT,
	current_company TEXT,
	linkedin_summary TEXT,
	resume TEXT,
	executive_summary TEXT,
	years_xp TEXT,
	years_sustainability_xp TEXT,
	linkedin_skills TEXT,
	key_competencies TEXT,
	key_sectors TEXT,
	gender_identity TEXT,
	race_ethnicity TEXT,
	lgbtqia TEXT,
	source TEXT
)`

type fixture struct {
	first, last, email, linkedin, resume, job, competencies, sectors, years, susYears, source string
}

var fixtures = []fixture{
	{"Zoe", "Adams", "zoe@example.org", "https://linkedin.com/in/zoe", "", "Analyst", "ESG reporting", "Finance, Energy", "5-10 years", "1-5 years", "LinkedIn, Referral"},
	{"Amir", "Baker", "amir@example.org", "", "Resume text on carbon accounting", "Consultant", "Carbon accounting, ESG reporting", "Energy", "10+ years", "5-10 years", "Website"},
	{"Lena", "Cho", "lena@example.org", "https://linkedin.com/in/lena", "CV", "Engineer", "Climate risk modeling", "Agriculture", "5-10 years", "5-10 years", "Referral"},
	{"amir", "Aalto", "amir2@example.org", "", "", "Researcher", "Biodiversity", "Forestry", "1-5 years", "", "LinkedIn"},
}

func newSQLiteService(t *testing.T) (*Service, *SQLiteStore) {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.DB().Exec(memberSchema)
	require.NoError(t, err)

	for _, f := range fixtures {
		_, err := store.DB().Exec(`INSERT INTO final
			(first_name, last_name, email, linkedin, resume, current_job, key_competencies, key_sectors,
			 years_xp, years_sustainability_xp, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.first, f.last, f.email, nullIfEmpty(f.linkedin), nullIfEmpty(f.resume), f.job, f.competencies,
			f.sectors, f.years, nullIfEmpty(f.susYears), f.source)
		require.NoError(t, err)
	}

	svc, err := NewService(context.Background(), store, "final")
	require.NoError(t, err)
	return svc, store
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
