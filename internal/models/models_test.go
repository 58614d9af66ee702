package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contact struct {
	EntityBase
	Name  string `json:"Name"`
	Email string `json:"Email,omitempty"`
}

func TestApplyDelta_OverlaysOnlyGivenFields(t *testing.T) {
	c := &contact{EntityBase: EntityBase{Id: "a"}, Name: "old", Email: "a@b.c"}

	require.NoError(t, ApplyDelta(c, Delta{"Name": "new", SyncPendingField: true}))

	assert.Equal(t, "a", c.Id)
	assert.Equal(t, "new", c.Name)
	assert.Equal(t, "a@b.c", c.Email)
	assert.True(t, c.SyncPending())
}

type place struct {
	City   string `json:"City"`
	Street string `json:"Street"`
}

type visit struct {
	EntityBase
	Name  string   `json:"Name"`
	Place *place   `json:"Place,omitempty"`
	Tags  []string `json:"Tags,omitempty"`
}

func TestApplyDelta_ReplacesTopLevelFields(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		want  visit
	}{
		{
			name:  "nil resets a scalar",
			delta: Delta{"Name": nil},
			want:  visit{EntityBase: EntityBase{Id: "v"}, Place: &place{City: "Riga", Street: "Brivibas"}, Tags: []string{"a"}},
		},
		{
			name:  "nested object replaced as a whole",
			delta: Delta{"Place": map[string]any{"City": "Tallinn"}},
			want:  visit{EntityBase: EntityBase{Id: "v"}, Name: "old", Place: &place{City: "Tallinn"}, Tags: []string{"a"}},
		},
		{
			name:  "nil drops a nested object and a list",
			delta: Delta{"Place": nil, "Tags": nil},
			want:  visit{EntityBase: EntityBase{Id: "v"}, Name: "old"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &visit{EntityBase: EntityBase{Id: "v"}, Name: "old", Place: &place{City: "Riga", Street: "Brivibas"}, Tags: []string{"a"}}
			require.NoError(t, ApplyDelta(v, tt.delta))
			assert.Equal(t, tt.want, *v)
		})
	}
}

func TestApplyDelta_RejectsNonPointer(t *testing.T) {
	require.Error(t, ApplyDelta(visit{}, Delta{"Name": "x"}))
}

func TestDelta_StampedDoesNotMutateOriginal(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := Delta{"Name": "x"}

	s := d.Stamped(now)

	assert.Equal(t, now, s[ModifiedOnField])
	_, ok := d[ModifiedOnField]
	assert.False(t, ok)
}

func TestSnapshot_ReturnsBeforeValues(t *testing.T) {
	c := &contact{EntityBase: EntityBase{Id: "a"}, Name: "old"}

	before, err := Snapshot(c, Delta{"Name": "new", "Email": "x@y.z"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"Name": "old", "Email": nil}, before)
}

func TestMaxModifiedOn(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	a := &contact{}
	a.SetModifiedAt(t0)
	b := &contact{}
	b.SetModifiedAt(t1)
	none := &contact{}

	got := MaxModifiedOn([]Entity{a, none, b})
	require.NotNil(t, got)
	assert.True(t, got.Equal(t1))

	assert.Nil(t, MaxModifiedOn(nil))
	assert.Nil(t, MaxModifiedOn([]Entity{none}))
}

func TestSchemaKind(t *testing.T) {
	s := &Schema{Properties: []Property{{Name: "Lines", Kind: PropertyOwnedCollection}}}

	assert.Equal(t, PropertyOwnedCollection, s.Kind("Lines"))
	assert.Equal(t, PropertyScalar, s.Kind("Name"))

	var nilSchema *Schema
	assert.Equal(t, PropertyScalar, nilSchema.Kind("Lines"))
}

func TestValidityString(t *testing.T) {
	assert.Equal(t, "unknown", ValidityUnknown.String())
	assert.Equal(t, "valid", ValidityValid.String())
	assert.Equal(t, "invalid", ValidityInvalid.String())
}
