package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	olriclib "github.com/olric-data/olric"

	netringolric "github.com/netring-io/netring/pkg/olric"
)

const keyIndexKey = "netring:__key_index"

// Olric is a Store implementation backed by an olric cluster, built on
// top of the cluster client in pkg/olric. Values live in a single DMap;
// Scan is served from a self-maintained key index rather than a native
// prefix scan, since netring's key space (member/metrics/location
// records, §4.3) is small enough that an index round-trip per Scan call
// is cheap, and it keeps the hot Get/Set/Delete path on the same
// put/get/delete calls pkg/olric already exercises.
type Olric struct {
	dm olriclib.DMap

	// idxMu serializes read-modify-write updates to the key index. It
	// only protects against concurrent writers within this process;
	// concurrent writers in other processes can still race the index,
	// which is acceptable for Scan's best-effort listing use (member
	// directory sweeps tolerate a stale or momentarily-incomplete view,
	// since callers re-poll on the next cleanup/heartbeat cycle).
	idxMu sync.Mutex
}

// NewOlric builds an Olric-backed Store on a DMap named dmapName, using
// an already-connected client.
func NewOlric(client *netringolric.Client, dmapName string) (*Olric, error) {
	dm, err := client.GetClient().NewDMap(dmapName)
	if err != nil {
		return nil, fmt.Errorf("netring store: create dmap %q: %w", dmapName, err)
	}
	return &Olric{dm: dm}, nil
}

func (o *Olric) Get(ctx context.Context, key string) ([]byte, bool, error) {
	gr, err := o.dm.Get(ctx, key)
	if err != nil {
		if err == olriclib.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("olric get %q: %w", key, err)
	}
	val, err := gr.Byte()
	if err != nil {
		return nil, false, fmt.Errorf("olric decode %q: %w", key, err)
	}
	return val, true, nil
}

func (o *Olric) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opts := []olriclib.PutOption{}
	if ttl > 0 {
		opts = append(opts, olriclib.EX(ttl))
	}
	if err := o.dm.Put(ctx, key, value, opts...); err != nil {
		return fmt.Errorf("olric put %q: %w", key, err)
	}
	o.indexAdd(ctx, key)
	return nil
}

func (o *Olric) Delete(ctx context.Context, key string) error {
	if _, err := o.dm.Delete(ctx, key); err != nil && err != olriclib.ErrKeyNotFound {
		return fmt.Errorf("olric delete %q: %w", key, err)
	}
	o.indexRemove(ctx, key)
	return nil
}

func (o *Olric) Scan(ctx context.Context, prefix string) ([]string, error) {
	all, err := o.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (o *Olric) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		if err := o.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (o *Olric) loadIndex(ctx context.Context) ([]string, error) {
	gr, err := o.dm.Get(ctx, keyIndexKey)
	if err != nil {
		if err == olriclib.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("olric load key index: %w", err)
	}
	raw, err := gr.Byte()
	if err != nil {
		return nil, fmt.Errorf("olric decode key index: %w", err)
	}
	var keys []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("olric unmarshal key index: %w", err)
		}
	}
	return keys, nil
}

func (o *Olric) saveIndex(ctx context.Context, keys []string) {
	raw, err := json.Marshal(keys)
	if err != nil {
		return
	}
	_ = o.dm.Put(ctx, keyIndexKey, raw)
}

func (o *Olric) indexAdd(ctx context.Context, key string) {
	if key == keyIndexKey {
		return
	}
	o.idxMu.Lock()
	defer o.idxMu.Unlock()

	keys, err := o.loadIndex(ctx)
	if err != nil {
		return
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	o.saveIndex(ctx, append(keys, key))
}

func (o *Olric) indexRemove(ctx context.Context, key string) {
	o.idxMu.Lock()
	defer o.idxMu.Unlock()

	keys, err := o.loadIndex(ctx)
	if err != nil {
		return
	}
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	o.saveIndex(ctx, out)
}
