package consul

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/flashfs/engine/store"
)

// Consul KV has a hard limit of 512KB per value, which caps the
// usable chunk size for devices backed by this store.
const maxChunkValueSize = 512 * 1024

// ConsulStore persists the object graph and file chunks in the
// HashiCorp Consul KV store.
//
// Layout under the configured prefix:
//   - <prefix>/obj/<id>          JSON-encoded record
//   - <prefix>/chunk/<id>/<idx>  raw chunk bytes
//
// Best suited for small configuration-style filesystems shared
// between nodes; large file content does not belong in Consul.
type ConsulStore struct {
	mu sync.RWMutex
	kv *api.KV

	config *ConsulStoreConfig
}

// ConsulStoreConfig contains configuration options for the Consul
// store.
type ConsulStoreConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Prefix for all keys in Consul KV. Pass the device ID to
	// namespace several devices in one cluster (default: "flashfs").
	Prefix string
}

// NewConsulStore creates a new Consul-backed store.
func NewConsulStore(config *ConsulStoreConfig) (*ConsulStore, error) {
	if config == nil {
		config = &ConsulStoreConfig{}
	}

	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Prefix == "" {
		config.Prefix = "flashfs"
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulStore{
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this store.
func (*ConsulStore) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when the
// engine initialises the device. Consul handles connections itself.
func (cs *ConsulStore) Open(ctx context.Context) error {
	return nil
}

// Close is part of the lifecycle behaviour and gets called when the
// engine tears the device down.
func (cs *ConsulStore) Close(ctx context.Context) error {
	return nil
}

// Capabilities returns the limits advertised by this store.
func (cs *ConsulStore) Capabilities() *store.Capabilities {
	return &store.Capabilities{
		MaxObjectSize: maxChunkValueSize * 64,
	}
}

func (cs *ConsulStore) PutRecord(ctx context.Context, rec *store.Record) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	buf, err := rec.Marshal()
	if err != nil {
		return err
	}

	pair := &api.KVPair{
		Key:   cs.recordKey(rec.ID),
		Value: buf,
	}

	_, err = cs.kv.Put(pair, nil)
	return err
}

func (cs *ConsulStore) DeleteRecord(ctx context.Context, id uint64) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	_, err := cs.kv.Delete(cs.recordKey(id), nil)
	return err
}

func (cs *ConsulStore) ListRecords(ctx context.Context) ([]*store.Record, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	pairs, _, err := cs.kv.List(cs.config.Prefix+"/obj/", nil)
	if err != nil {
		return nil, err
	}

	records := make([]*store.Record, 0, len(pairs))
	for _, pair := range pairs {
		rec := &store.Record{}
		if err := rec.Unmarshal(pair.Value); err != nil {
			return nil, fmt.Errorf("corrupt record at %s: %w", pair.Key, err)
		}
		records = append(records, rec)
	}

	// Key order is lexicographic; the zero-padded key format makes
	// that identical to identifier order.
	return records, nil
}

func (cs *ConsulStore) ReadChunk(ctx context.Context, id uint64, index int64) ([]byte, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	pair, _, err := cs.kv.Get(cs.chunkKey(id, index), nil)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, nil
	}

	return pair.Value, nil
}

func (cs *ConsulStore) WriteChunk(ctx context.Context, id uint64, index int64, buf []byte) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	pair := &api.KVPair{
		Key:   cs.chunkKey(id, index),
		Value: buf,
	}

	_, err := cs.kv.Put(pair, nil)
	return err
}

func (cs *ConsulStore) TrimChunks(ctx context.Context, id uint64, from int64) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	prefix := fmt.Sprintf("%s/chunk/%016x/", cs.config.Prefix, id)

	if from == 0 {
		_, err := cs.kv.DeleteTree(prefix, nil)
		return err
	}

	keys, _, err := cs.kv.Keys(prefix, "", nil)
	if err != nil {
		return err
	}

	for _, key := range keys {
		index, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 16, 64)
		if err != nil {
			continue
		}
		if index >= from {
			if _, err := cs.kv.Delete(key, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

// Flush persists any buffered state. Consul writes are synchronous.
func (cs *ConsulStore) Flush(ctx context.Context) error {
	return nil
}

func (cs *ConsulStore) recordKey(id uint64) string {
	return fmt.Sprintf("%s/obj/%016x", cs.config.Prefix, id)
}

func (cs *ConsulStore) chunkKey(id uint64, index int64) string {
	return fmt.Sprintf("%s/chunk/%016x/%016x", cs.config.Prefix, id, index)
}

var _ store.Store = (*ConsulStore)(nil)
