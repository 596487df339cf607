package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	assert.Equal(t, 0, Allocate(nil), "empty scope starts at zero")

	max := 0
	assert.Equal(t, 1, Allocate(&max))

	max = 41
	assert.Equal(t, 42, Allocate(&max))
}

func TestAuthorize(t *testing.T) {
	access := Access{OwnerID: "owner", MemberIDs: []string{"member"}}

	assert.True(t, Authorize("owner", access))
	assert.True(t, Authorize("member", access))
	assert.False(t, Authorize("stranger", access))
	assert.False(t, Authorize("", access))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		desired Arrangement
		wantID  string
		wantErr bool
	}{
		{name: "empty submission", desired: Arrangement{}},
		{name: "list without cards", desired: Arrangement{Lists: []ListOrder{{ID: "A"}}}},
		{name: "missing list id", desired: Arrangement{Lists: []ListOrder{{ID: ""}}}, wantErr: true},
		{name: "missing card id", desired: Arrangement{Lists: []ListOrder{{ID: "A", Cards: []string{""}}}}, wantErr: true},
		{name: "duplicate list", desired: Arrangement{Lists: []ListOrder{{ID: "A"}, {ID: "A"}}}, wantErr: true, wantID: "A"},
		{name: "duplicate card within list", desired: Arrangement{Lists: []ListOrder{{ID: "A", Cards: []string{"c", "c"}}}}, wantErr: true, wantID: "c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.desired)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.wantID, verr.ID)
		})
	}
}

func TestCheckReferences(t *testing.T) {
	current := boardAB()

	t.Run("card moved between submitted lists", func(t *testing.T) {
		err := CheckReferences(current, Arrangement{Lists: []ListOrder{
			{ID: "A", Cards: []string{"a1"}},
			{ID: "B", Cards: []string{"a2", "C"}},
		}})
		assert.NoError(t, err)
	})

	t.Run("list of another board", func(t *testing.T) {
		err := CheckReferences(current, Arrangement{Lists: []ListOrder{{ID: "Z"}}})
		var rerr *ReferenceError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, KindList, rerr.Kind)
		assert.Equal(t, "Z", rerr.ID)
		assert.Equal(t, "b-1", rerr.BoardID)
	})

	t.Run("card of another board", func(t *testing.T) {
		err := CheckReferences(current, Arrangement{Lists: []ListOrder{{ID: "A", Cards: []string{"a1", "y1"}}}})
		var rerr *ReferenceError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, KindCard, rerr.Kind)
		assert.Equal(t, "y1", rerr.ID)
	})

	t.Run("card from a list outside the submission", func(t *testing.T) {
		err := CheckReferences(current, Arrangement{Lists: []ListOrder{{ID: "A", Cards: []string{"b1"}}}})
		var rerr *ReferenceError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "b1", rerr.ID)
	})
}

func TestVerifyDense(t *testing.T) {
	assert.NoError(t, VerifyDense(boardAB()))

	gap := Snapshot{BoardID: "b", Lists: []PlacedList{{ID: "A", Position: 0, Cards: []PlacedCard{{ID: "x", Position: 1}}}}}
	assert.Error(t, VerifyDense(gap))

	dup := Snapshot{BoardID: "b", Lists: []PlacedList{{ID: "A", Position: 0}, {ID: "B", Position: 0}}}
	assert.Error(t, VerifyDense(dup))
}
