package runner

import (
	"fmt"

	"github.com/coldcall/coldcall/internal/chunk"
	"github.com/coldcall/coldcall/internal/config"
)

// Call is a single JSON-RPC invocation produced by a dataset.
type Call struct {
	Method string
	Params any
}

// Dataset expands a block range into the calls that extract it.
type Dataset struct {
	Name  string
	calls func(r chunk.Range) []Call
}

// Calls returns the JSON-RPC calls covering r.
func (d Dataset) Calls(r chunk.Range) []Call {
	return d.calls(r)
}

func hexBlock(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// perBlock issues one call per block in the range.
func perBlock(method string, params func(n uint64) any) func(chunk.Range) []Call {
	return func(r chunk.Range) []Call {
		calls := make([]Call, 0, r.Blocks())
		for n := r.Start; ; n++ {
			calls = append(calls, Call{Method: method, Params: params(n)})
			if n == r.End {
				break
			}
		}
		return calls
	}
}

var datasetDefs = map[string]Dataset{
	config.DatasetBlocks: {
		Name: config.DatasetBlocks,
		calls: perBlock("eth_getBlockByNumber", func(n uint64) any {
			return []any{hexBlock(n), false}
		}),
	},
	config.DatasetTransactions: {
		Name: config.DatasetTransactions,
		calls: perBlock("eth_getBlockByNumber", func(n uint64) any {
			return []any{hexBlock(n), true}
		}),
	},
	config.DatasetLogs: {
		Name: config.DatasetLogs,
		calls: func(r chunk.Range) []Call {
			return []Call{{
				Method: "eth_getLogs",
				Params: []any{map[string]string{
					"fromBlock": hexBlock(r.Start),
					"toBlock":   hexBlock(r.End),
				}},
			}}
		},
	},
}

// DatasetByName resolves a configured dataset name.
func DatasetByName(name string) (Dataset, error) {
	ds, ok := datasetDefs[name]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown dataset %q", name)
	}
	return ds, nil
}

// Datasets resolves a list of configured dataset names, preserving
// order.
func Datasets(names []string) ([]Dataset, error) {
	out := make([]Dataset, 0, len(names))
	for _, name := range names {
		ds, err := DatasetByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}
