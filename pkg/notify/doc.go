/*
Package notify implements the Nacos long-polling listener protocol.

A Nacos client does not poll configs one by one. It POSTs a batch of
(dataId, group, md5[, tenant]) claims to /v1/cs/configs/listener and the
server holds the request open, answering early with the keys whose
server-side MD5 differs, or after the requested timeout with an empty
body when nothing changed. This package supplies the pieces of that
protocol: the record codec, the per-request poll loop, the in-process
change broker that wakes waiting polls on publish, and the background
subscriber pruner.

# Architecture

	┌───────────────────── LONG-POLL PIPELINE ─────────────────────┐
	│                                                              │
	│  Listening-Configs body                                      │
	│        │                                                     │
	│        ▼                                                     │
	│  ┌──────────────┐   records    ┌──────────────────────────┐  │
	│  │ ParseListen- │ ───────────▶ │ Poller.Poll              │  │
	│  │ ingConfigs   │              │  1. compare MD5s         │  │
	│  └──────────────┘              │  2. changed? answer now  │  │
	│                                │  3. else wait:           │  │
	│  ┌──────────────┐   signal     │     broker ch / 500ms    │  │
	│  │ Broker       │ ───────────▶ │     tick / deadline /    │  │
	│  │ (per-triple  │              │     ctx cancel           │  │
	│  │  waiters)    │              └──────────┬───────────────┘  │
	│  └──────▲───────┘                         │ changed keys     │
	│         │ Notify(key)                     ▼                  │
	│  configstore publish/delete        FormatChanged             │
	│                                                              │
	└──────────────────────────────────────────────────────────────┘

# Wire Format

Request records are joined with control characters, 0x02 between fields
and 0x01 after each record:

	dataId \x02 group \x02 md5 [\x02 tenant] \x01

The response lists only the keys, never the MD5:

	dataId \x02 group \x02 tenant \x01

An empty claimed MD5 means the client holds nothing; a config that does
not exist on the server then counts as unchanged.

# Core Components

ParseListeningConfigs / FormatChanged:
  - Decode request bodies into ListenRecord slices
  - Encode changed keys back into the raw separator format

Broker:
  - Subscribe(keys) returns a signal channel plus a cancel func
  - Notify(key) wakes every waiter on that exact triple, non-blocking
  - Purely in-process; the database stays the source of truth

Poller:
  - ClampTimeout bounds the Long-Pulling-Timeout header to (0, 30s]
  - Poll compares first, then waits on broker signal or a 500ms tick
  - RecordSubscribers upserts one subscriber row per claimed key

Pruner:
  - Background ticker deleting subscriber rows idle past the TTL
  - Keeps the console listener query from reporting dead clients

# Usage

Serving one long poll:

	records, err := notify.ParseListeningConfigs(body)
	if err != nil {
		return err
	}
	timeout, _ := notify.ClampTimeout(requested)
	changed, err := poller.Poll(r.Context(), records, timeout)
	if err != nil {
		return err
	}
	io.WriteString(w, notify.FormatChanged(changed))

Waking listeners after a write:

	broker.Notify(types.ConfigKey{
		DataID: "app.yaml", Group: "DEFAULT_GROUP", Tenant: "public",
	})

# Design Notes

  - The broker is an optimization, not a correctness requirement: every
    wakeup re-reads the database before answering, so a missed signal
    only delays the reply until the next 500ms comparison tick.
  - Signal channels have capacity 1 and sends are non-blocking, so a
    slow poll goroutine never stalls a publish.
  - Cancel funcs are idempotent; the poll loop always cancels on exit.

# See Also

  - pkg/configstore: calls Broker.Notify after publish and delete
  - pkg/api: the HTTP handler driving Poller.Poll
*/
package notify
