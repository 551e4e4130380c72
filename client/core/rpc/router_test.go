package rpc

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sealedBatch 构造 n 个翻倍调用并封存
func sealedBatch(t *testing.T, n int) (*Batch, []*Slot[int, string], *Registry) {
	t.Helper()
	b := NewBatch()
	slots := make([]*Slot[int, string], n)
	for i := range slots {
		slots[i] = MustAdd(b, doubleCall("test_double", i))
	}
	_, err := b.Seal()
	require.NoError(t, err)
	reg, err := b.Registry()
	require.NoError(t, err)
	return b, slots, reg
}

func resultEnv(id, value int) Envelope {
	raw, _ := json.Marshal(value)
	return NewResultEnvelope(id, raw)
}

func TestRouter_AllSucceed(t *testing.T) {
	_, slots, reg := sealedBatch(t, 5)

	var events []ItemResponse
	router := NewRouter(reg, nil, func(r ItemResponse) { events = append(events, r) })
	for i := range slots {
		require.NoError(t, router.Route(resultEnv(i, 100+i)))
	}

	require.Len(t, events, 5)
	for i, slot := range slots {
		value, err := slot.Outcome()
		require.NoError(t, err)
		// 每个 Slot 的值来自与自身 id 匹配的响应
		assert.Equal(t, doubleOf(100+i), value)
		assert.Equal(t, i, events[i].ID)
		assert.Equal(t, slot.Call(), events[i].Call)
		assert.Equal(t, value, events[i].Value)
	}
}

func doubleOf(v int) string {
	return strconv.Itoa(v * 2)
}

func TestRouter_PermutationIndependence(t *testing.T) {
	perms := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}

	var baseline []string
	for _, perm := range perms {
		_, slots, reg := sealedBatch(t, len(perm))
		router := NewRouter(reg, nil, nil)
		for _, id := range perm {
			env := resultEnv(id, id*7)
			if id == 1 {
				env = NewErrorEnvelope(id, CodeInvalidParams, "bad params")
			}
			require.NoError(t, router.Route(env))
		}

		var outcome []string
		for _, slot := range slots {
			value, err := slot.Outcome()
			if err != nil {
				outcome = append(outcome, "err:"+err.Error())
				continue
			}
			outcome = append(outcome, value)
		}
		if baseline == nil {
			baseline = outcome
			continue
		}
		assert.Equal(t, baseline, outcome, "perm %v", perm)
	}
}

func TestRouter_ServerErrorIsLocal(t *testing.T) {
	_, slots, reg := sealedBatch(t, 2)
	router := NewRouter(reg, nil, nil)

	env := NewErrorEnvelope(0, -32000, "execution reverted")
	env.Error.Data = json.RawMessage(`"0x08c379a0"`)
	require.NoError(t, router.Route(env))
	require.NoError(t, router.Route(resultEnv(1, 3)))

	_, err := slots[0].Outcome()
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, "execution reverted", rpcErr.Message)
	assert.Equal(t, "test_double", rpcErr.Method)
	assert.JSONEq(t, `"0x08c379a0"`, string(rpcErr.Data))
	assert.True(t, IsServerError(err))
	assert.False(t, IsTransportError(err))

	value, err := slots[1].Outcome()
	require.NoError(t, err)
	assert.Equal(t, "6", value)
}

func TestRouter_UnmatchedID(t *testing.T) {
	_, slots, reg := sealedBatch(t, 2)
	router := NewRouter(reg, nil, nil)

	for _, env := range []Envelope{
		resultEnv(9, 1),
		{ID: json.RawMessage(`"0"`), Result: json.RawMessage(`1`)},
		{ID: json.RawMessage(`null`), Result: json.RawMessage(`1`)},
		{Result: json.RawMessage(`1`)},
		{ID: json.RawMessage(`-1`), Result: json.RawMessage(`1`)},
	} {
		err := router.Route(env)
		var unmatched *UnmatchedIDError
		require.ErrorAs(t, err, &unmatched, "id %s", env.ID)
	}

	// 后续有效响应照常路由
	require.NoError(t, router.Route(resultEnv(0, 1)))
	require.NoError(t, router.Route(resultEnv(1, 2)))
	for _, slot := range slots {
		assert.Equal(t, StateCompleted, slot.State())
	}
}

func TestRouter_DuplicateResponse(t *testing.T) {
	_, slots, reg := sealedBatch(t, 1)
	calls := 0
	router := NewRouter(reg, nil, func(ItemResponse) { calls++ })

	require.NoError(t, router.Route(resultEnv(0, 1)))
	err := router.Route(resultEnv(0, 50))

	var dup *DuplicateResponseError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 0, dup.ID)
	assert.ErrorIs(t, err, ErrSlotTerminal)
	assert.Equal(t, 1, calls)

	value, _ := slots[0].Outcome()
	assert.Equal(t, "2", value)

	err = router.Route(NewErrorEnvelope(0, CodeInternalError, "late"))
	assert.ErrorAs(t, err, &dup)
}

func TestRouter_SchemaMismatchReported(t *testing.T) {
	_, slots, reg := sealedBatch(t, 1)
	var got ItemResponse
	router := NewRouter(reg, nil, func(r ItemResponse) { got = r })

	require.NoError(t, router.Route(NewResultEnvelope(0, json.RawMessage(`[1,2]`))))

	var sme *SchemaMismatchError
	assert.ErrorAs(t, got.Err, &sme)
	assert.Equal(t, StateFailed, slots[0].State())
}

func TestRouter_NullResult(t *testing.T) {
	_, slots, reg := sealedBatch(t, 1)
	router := NewRouter(reg, nil, nil)

	require.NoError(t, router.Route(Envelope{ID: IDBytes(0)}))
	value, err := slots[0].Outcome()
	assert.NoError(t, err)
	assert.Equal(t, "", value)
	assert.Equal(t, StateCompleted, slots[0].State())
}

func TestDuplicateResponseError_NotSchema(t *testing.T) {
	err := error(&DuplicateResponseError{ID: 1, Method: "m"})
	var sme *SchemaMismatchError
	assert.False(t, errors.As(err, &sme))
	assert.Contains(t, err.Error(), "duplicate response for id 1")
}
