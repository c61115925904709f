package dataanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fractalhq/orcha/agent"
)

func TestNew_AppliesDefaults(t *testing.T) {
	a := New(agent.Descriptor{})
	assert.Equal(t, defaultEndpoint, a.endpoint)
	assert.Equal(t, defaultDatabase, a.database)
	assert.Equal(t, defaultMaxRows, a.maxRows)
	assert.True(t, a.allowedCollection("anything"))
}

func TestNew_RestrictsToAllowedTables(t *testing.T) {
	a := New(agent.Descriptor{Config: map[string]any{
		"allowed_tables": []string{"sales", "inventory"},
	}})
	assert.True(t, a.allowedCollection("sales"))
	assert.False(t, a.allowedCollection("customers"))
}

func TestQueryCollection_MissingCollection(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.Operations()["query_collection"].Run(nil, map[string]any{}, nil, a) //nolint:staticcheck // nil ctx unused before guard
	assert.False(t, result.IsOK())
}

func TestQueryCollection_RejectsDisallowedCollection(t *testing.T) {
	a := New(agent.Descriptor{Config: map[string]any{"allowed_tables": []string{"sales"}}})
	result := a.Operations()["query_collection"].Run(nil, map[string]any{"collection": "customers"}, nil, a) //nolint:staticcheck
	assert.False(t, result.IsOK())
}

func TestBuildFilterClause_NoFilter(t *testing.T) {
	clause, bindVars := buildFilterClause(nil)
	assert.Equal(t, "", clause)
	assert.Empty(t, bindVars)
}

func TestBuildFilterClause_BuildsBoundClause(t *testing.T) {
	clause, bindVars := buildFilterClause(map[string]any{"region": "west"})
	assert.Contains(t, clause, "FILTER doc.region == @f0")
	assert.Equal(t, "west", bindVars["f0"])
}
