/*
Package api exposes the Nacos-compatible HTTP surface.

The api package owns the HTTP server, the route table, the response
envelopes and the request middleware. It translates the Nacos v1 wire
protocol (query/form/multipart shapes, fixed paths under a context
path, three distinct response families) into calls on the domain
packages: configstore, registry, tenant, auth and notify.

# Architecture

	┌──────────────────────── HTTP SURFACE ────────────────────────┐
	│                                                              │
	│  /metrics (Prometheus, outside the context path)             │
	│                                                              │
	│  <contextPath>/ ─ StripPrefix ─▶ mux                         │
	│    /v1/cs/configs            config CRUD, search, beta,      │
	│                              export, import, clone (query    │
	│                              discriminators pick the op)     │
	│    /v1/cs/configs/listener   long poll + listener query      │
	│    /v1/cs/history[...]       history trail, previous row     │
	│    /v1/ns/service[...]       service CRUD and projections    │
	│    /v1/ns/instance[...]      register, beat, list, patch,    │
	│                              metadata batch                  │
	│    /v1/ns/operator/...       standalone probe stubs          │
	│    /v1/console/namespaces    namespace console (RestResult)  │
	│    /v3/console/cs/config/... listener status, rollback       │
	│    /v1/auth/users/login      login and token refresh         │
	│                                                              │
	│  every route: instrument(path, handler)                      │
	│    request log + metrics + panic recovery                    │
	│  console routes: requireAuth(handler)                        │
	│    bearer-token validation when auth is enabled              │
	│                                                              │
	└──────────────────────────────────────────────────────────────┘

# Dispatch

Nacos multiplexes several operations over one URL using query
discriminators rather than paths or methods alone. GET /v1/cs/configs
is a config read, unless search=accurate|blur (search), show=all
(detail projection), export=true (ZIP export) or beta=true (beta
overlay); POST is a publish unless import=true (ZIP import) or the
body is a clone set. Each handler therefore resolves method first,
then the discriminators, before calling into the domain packages.

# Response Families

Three envelope families coexist and SDKs are strict about which
endpoint uses which:

 1. Raw text: config content, "true"/"false" acknowledgements, "ok",
    "UP". Content-Type text/plain;charset=UTF-8.
 2. Bare JSON domain objects: the hosts envelope, doms/count lists,
    beat responses, beta detail, import/clone
    {succCount, skipCount, failCount, failData}, listenersStatus.
 3. RestResult {code, message, data}: the namespace console only.

writeError maps domain errors onto the wire taxonomy (404 "config data
not exist", 400, 401, 500) and never leaks storage detail to a client.

# Middleware

instrument wraps every route with request logging, Prometheus counters
and histograms, and panic recovery. requireAuth guards console routes:
with auth disabled (the Nacos default) the console is open; with auth
enabled a valid bearer token is required, accepted from either the
Authorization header or the accessToken parameter.

# Usage

	srv := api.NewServer(api.Config{
		Store:    store,
		Configs:  configs,
		Registry: reg,
		Tenants:  tenants,
		Auth:     authMgr,
		Poller:   poller,
	})
	go srv.Start(":8848")
	...
	srv.Stop(ctx)

The server sets no WriteTimeout: long-poll responses are held open for
up to 30s and must not be cut off. Stop drains in-flight requests,
held polls included, within the caller's context deadline.

# See Also

  - pkg/notify: the long-poll protocol behind the listener route
  - pkg/configstore, pkg/registry, pkg/tenant, pkg/auth: the domain
    packages these handlers call
*/
package api
