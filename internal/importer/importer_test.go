package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocosbh/bloco-agenda/internal/model"
	"github.com/blocosbh/bloco-agenda/internal/repository"
)

// fakeEventStore keeps events in memory the way the MySQL table would
// hand them back: DATETIME columns scan in the UTC session zone, so
// stored rows lose the listing offset.
type fakeEventStore struct {
	byID map[string]model.BaseEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{byID: map[string]model.BaseEvent{}}
}

func (f *fakeEventStore) ListExistingKeys(ctx context.Context, year int) ([]repository.ExistingID, error) {
	out := make([]repository.ExistingID, 0, len(f.byID))
	for _, ev := range f.byID {
		out = append(out, repository.ExistingID{ID: ev.ID, Key: ev.Key()})
	}
	return out, nil
}

func (f *fakeEventStore) UpsertBatch(ctx context.Context, events []model.BaseEvent) error {
	for _, ev := range events {
		ev.StartsAt = ev.StartsAt.UTC()
		f.byID[ev.ID] = ev
	}
	return nil
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"carnival saturday", "14/02", time.Date(2026, time.February, 14, 0, 0, 0, 0, saoPaulo)},
		{"padded whitespace", " 01/03 ", time.Date(2026, time.March, 1, 0, 0, 0, 0, saoPaulo)},
		{"month out of range", "10/13", time.Time{}},
		{"day out of range", "32/01", time.Time{}},
		{"full date not listing format", "14/02/2026", time.Time{}},
		{"free text", "a definir", time.Time{}},
		{"empty", "", time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeDate(tc.raw, 2026)
			assert.True(t, got.Equal(tc.want), "got %v want %v", got, tc.want)
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		want   time.Duration
		wantOk bool
	}{
		{"hour only", "17h", 17 * time.Hour, true},
		{"hour and minutes", "17h30", 17*time.Hour + 30*time.Minute, true},
		{"single digit hour", "7h", 7 * time.Hour, true},
		{"uppercase", "9H30", 9*time.Hour + 30*time.Minute, true},
		{"to be announced", "A Divulgar", 0, false},
		{"empty", "", 0, false},
		{"hour out of range", "25h", 0, false},
		{"minutes out of range", "10h75", 0, false},
		{"garbage", "meio-dia", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeTime(tc.raw)
			assert.Equal(t, tc.wantOk, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

const sampleCSV = `DATA,HORÁRIO,BLOCO,LOCAL DA CONCETRAÇÃO,RITMOS,TAMANHO PÚBLICO,LGBT
14/02,17h30,Então Brilha,Rua dos Guajajaras,Axé,Grande,Sim
14/02,a divulgar,Baianas Ozadas,Av. Afonso Pena,Axé e samba,Grande,
,9h,Sem Data,Praça da Liberdade,,,
15/02,9h,Alô Abacaxi,,,,
16/02,,Havayanas Usadas,Rua Sapucaí,Marchinhas,Médio,Não
`

func TestParse(t *testing.T) {
	events, ignored, err := Parse(strings.NewReader(sampleCSV), 2026)
	require.NoError(t, err)

	assert.Equal(t, 2, ignored, "rows without date or location are skipped")
	require.Len(t, events, 3)

	brilha := events[0]
	assert.Equal(t, "Então Brilha", brilha.Title)
	assert.Equal(t, "Rua dos Guajajaras", brilha.Location)
	assert.False(t, brilha.AllDay)
	assert.True(t, brilha.StartsAt.Equal(time.Date(2026, time.February, 14, 17, 30, 0, 0, saoPaulo)))
	assert.Equal(t, "Axé", brilha.Ritmos)
	assert.Equal(t, "Grande", brilha.TamanhoPublico)
	assert.Equal(t, "Sim", brilha.LGBT)
	assert.NotEmpty(t, brilha.ID)

	ozadas := events[1]
	assert.True(t, ozadas.AllDay, "an unannounced time means an all-day event")
	assert.True(t, ozadas.StartsAt.Equal(time.Date(2026, time.February, 14, 0, 0, 0, 0, saoPaulo)))

	havayanas := events[2]
	assert.True(t, havayanas.AllDay)
	assert.True(t, havayanas.StartsAt.Equal(time.Date(2026, time.February, 16, 0, 0, 0, 0, saoPaulo)))
}

func TestParseDistinctIDs(t *testing.T) {
	events, _, err := Parse(strings.NewReader(sampleCSV), 2026)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, ev := range events {
		assert.False(t, seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
	}
}

func TestRunFirstImportInsertsAll(t *testing.T) {
	store := newFakeEventStore()
	im := New(store)

	report, err := im.Run(context.Background(), strings.NewReader(sampleCSV), 2026)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 2, report.Ignored)
	assert.Len(t, store.byID, 3)
}

func TestRunReimportUpdatesInPlace(t *testing.T) {
	store := newFakeEventStore()
	im := New(store)

	_, err := im.Run(context.Background(), strings.NewReader(sampleCSV), 2026)
	require.NoError(t, err)
	idsBefore := make(map[string]bool, len(store.byID))
	for id := range store.byID {
		idsBefore[id] = true
	}

	report, err := im.Run(context.Background(), strings.NewReader(sampleCSV), 2026)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Inserted, "a second import of the same listing must not insert")
	assert.Equal(t, 3, report.Updated)
	require.Len(t, store.byID, 3, "re-import must not duplicate rows")
	for id := range store.byID {
		assert.True(t, idsBefore[id], "existing id %s must be reused, not replaced", id)
	}
}

func TestRunRejectsImplausibleYear(t *testing.T) {
	im := New(newFakeEventStore())
	_, err := im.Run(context.Background(), strings.NewReader(sampleCSV), 1926)
	require.Error(t, err)
}

func TestParseMissingRequiredColumn(t *testing.T) {
	csv := "DATA,HORÁRIO,BLOCO\n14/02,17h,Então Brilha\n"
	_, _, err := Parse(strings.NewReader(csv), 2026)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCAL DA CONCETRAÇÃO")
}

func TestParseShortRowsAreLenient(t *testing.T) {
	csv := "DATA,HORÁRIO,BLOCO,LOCAL DA CONCETRAÇÃO\n14/02,17h,Então Brilha,Rua A\n15/02,9h,Curto\n"
	events, ignored, err := Parse(strings.NewReader(csv), 2026)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, ignored, "a row missing its location column is skipped, not fatal")
}
