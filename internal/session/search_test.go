package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

func TestSearchEmptyQueryReturnsView(t *testing.T) {
	m := loadedManager(t, win10, win11, server2022)

	results := m.Search("  ")
	require.Len(t, results, 3)
	assert.Equal(t, win10, results[0].Entry)
	assert.Equal(t, server2022, results[2].Entry)
}

func TestSearchRanksMatches(t *testing.T) {
	m := loadedManager(t, win10, win11, server2022)

	results := m.Search("SERVER")
	require.Len(t, results, 1)
	assert.Equal(t, "server2022.vhd", results[0].Entry.Filename)
	assert.NotEmpty(t, results[0].MatchedIndexes)
}

func TestSearchOnlyCoversFilteredView(t *testing.T) {
	m := loadedManager(t, win10, win11, server2022)
	require.NoError(t, m.SetFilter(domain.FilterBootMode, domain.BootModeUEFI))

	for _, r := range m.Search("win") {
		assert.Equal(t, domain.BootModeUEFI, r.Entry.BootMode)
	}
	assert.Empty(t, m.Search("datacenter"))
}

func TestSearchFallsBackToFilename(t *testing.T) {
	m := loadedManager(t, domain.ImageEntry{Filename: "debian12.vhd"}, win10)

	results := m.Search("debian")
	require.Len(t, results, 1)
	assert.Equal(t, "debian12.vhd", results[0].Entry.Filename)
}

func TestSuggest(t *testing.T) {
	m := loadedManager(t, win10, win11, server2022)

	assert.ElementsMatch(t, []string{"win10.vhd", "win11.vhd"}, m.Suggest("WIN1", 0))
	assert.Len(t, m.Suggest("win1", 1), 1)
	assert.Equal(t, []string{"win10.vhd"}, m.Suggest("win10.iso", 0))
	assert.Equal(t, []string{"server2022.vhd"}, m.Suggest("srv2022", 0))
	assert.Empty(t, m.Suggest("", 0))
	assert.Empty(t, m.Suggest("ubuntu", 0))
}

func TestSuggestWithoutCatalog(t *testing.T) {
	m := newTestManager(t, newFakeCatalog(nil, nil), newFakeTransfer(), nil, Options{})
	assert.Nil(t, m.Suggest("win10.vhd", 3))
}
