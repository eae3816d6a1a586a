package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/models"
)

type fakePartition struct {
	cleared int
	err     error
}

func (f *fakePartition) ClearPartition(ctx context.Context) error {
	f.cleared++
	return f.err
}

func TestRegistryStartsEmpty(t *testing.T) {
	reg := NewRegistry(nil, common.GetLogger())

	record := reg.Get()
	require.NotNil(t, record)
	assert.True(t, record.IsEmpty())
}

func TestSetReplacesWholesale(t *testing.T) {
	reg := NewRegistry(nil, common.GetLogger())

	reg.Set(&models.SessionRecord{Token: "tok1", UserData: map[string]interface{}{"id": 7}})
	reg.Set(&models.SessionRecord{Cookies: "a=1"})

	record := reg.Get()
	assert.Equal(t, "a=1", record.Cookies)
	assert.Empty(t, record.Token)
	assert.Nil(t, record.UserData)
}

func TestGetReturnsSnapshot(t *testing.T) {
	reg := NewRegistry(nil, common.GetLogger())
	reg.Set(&models.SessionRecord{Token: "tok1"})

	snapshot := reg.Get()
	snapshot.Token = "mutated"

	assert.Equal(t, "tok1", reg.Get().Token)
}

func TestClearResetsRecordAndPartition(t *testing.T) {
	partition := &fakePartition{}
	reg := NewRegistry(partition, common.GetLogger())
	reg.Set(&models.SessionRecord{Token: "tok1", Cookies: "a=1"})

	require.NoError(t, reg.Clear(context.Background()))

	assert.True(t, reg.Get().IsEmpty())
	assert.Equal(t, 1, partition.cleared)
}

func TestClearSurfacesPartitionError(t *testing.T) {
	partition := &fakePartition{err: errors.New("boom")}
	reg := NewRegistry(partition, common.GetLogger())

	err := reg.Clear(context.Background())
	assert.Error(t, err)
	// The in-memory record is still reset even when the partition wipe fails.
	assert.True(t, reg.Get().IsEmpty())
}
