package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNames(t *testing.T) {
	assert.Equal(t, []string{
		"met_teens_free_workshops",
		"mfa_programs",
		"moma_kids",
		"moma_teens",
		"whitney_teen_workshops",
	}, Names())
}

func TestRegistryGet(t *testing.T) {
	a, err := Get("moma_teens")
	require.NoError(t, err)
	assert.Equal(t, "moma_teens", a.Name())

	_, err = Get("louvre")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestRegistryAllSorted(t *testing.T) {
	all := All()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name(), all[i].Name())
	}
}

func TestEveryAdapterHasRequests(t *testing.T) {
	for _, a := range All() {
		reqs := a.Requests()
		require.NotEmpty(t, reqs, a.Name())
		for _, req := range reqs {
			assert.NotEmpty(t, req.URL, a.Name())
		}
	}
}

func TestIsIrrelevantTitle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"", true},
		{"Tickets", true},
		{"tickets", true},
		{"Donate", true},
		{"Membership", true},
		{"Member events calendar", true},
		{"Shop the collection", true},
		{"Ticket desk", true},
		{"Teen Studio: Drawing", false},
		{"Free Drop-In Drawing", false},
		// Keyword must lead the title; a mention mid-title is fine.
		{"Workshop with free tickets", false},
		{"Membershipless", false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIrrelevantTitle(tt.title))
		})
	}
}
