// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/blinklabs-io/realms/event"
)

const streamBufferSize = 64

var errStreamBehind = errors.New("event stream consumer is too slow")

// streamSubscriber feeds one HTTP event stream. A full buffer fails the
// delivery, which unregisters the stream from the bus.
type streamSubscriber struct {
	ch     chan event.Event
	mu     sync.RWMutex
	closed bool
}

func newStreamSubscriber() *streamSubscriber {
	return &streamSubscriber{ch: make(chan event.Event, streamBufferSize)}
}

func (s *streamSubscriber) Deliver(evt event.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- evt:
		return nil
	default:
		return errStreamBehind
	}
}

func (s *streamSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// ipKeyFromAddr extracts a per-source key from a remote address. IPv6
// sources are grouped by /64 prefix. Unparseable addresses return an
// empty key and are exempt.
func ipKeyFromAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return ""
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}
	return ip.Mask(net.CIDRMask(64, 128)).String() + "/64"
}

// acquireStreamSlot reserves an event stream for the source, returning
// false once the per-source limit is reached
func (a *API) acquireStreamSlot(ipKey string) bool {
	if ipKey == "" {
		return true
	}
	a.streamsMu.Lock()
	defer a.streamsMu.Unlock()
	if a.ipStreams[ipKey] >= a.config.MaxStreamsPerIP {
		return false
	}
	a.ipStreams[ipKey]++
	return true
}

func (a *API) releaseStreamSlot(ipKey string) {
	if ipKey == "" {
		return
	}
	a.streamsMu.Lock()
	defer a.streamsMu.Unlock()
	a.ipStreams[ipKey]--
	if a.ipStreams[ipKey] <= 0 {
		delete(a.ipStreams, ipKey)
	}
}

func parseEventTypes(query string) ([]event.EventType, error) {
	if query == "" {
		return event.GovernanceEventTypes, nil
	}
	var ret []event.EventType
	for name := range strings.SplitSeq(query, ",") {
		evtType := event.EventType(strings.TrimSpace(name))
		if !slices.Contains(event.GovernanceEventTypes, evtType) {
			return nil, fmt.Errorf("%w: unknown event type %q", errBadRequest, name)
		}
		if !slices.Contains(ret, evtType) {
			ret = append(ret, evtType)
		}
	}
	return ret, nil
}

// handleEvents streams governance events as newline-delimited JSON until
// the client goes away, the server stops or the client falls behind.
// ?type= selects a comma separated subset of event types.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.bus == nil {
		http.NotFound(w, r)
		return
	}
	types, err := parseEventTypes(r.URL.Query().Get("type"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ipKey := ipKeyFromAddr(r.RemoteAddr)
	if !a.acquireStreamSlot(ipKey) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			StatusCode: http.StatusTooManyRequests,
			Error:      http.StatusText(http.StatusTooManyRequests),
			Message:    "too many event streams from this address",
			RequestID:  requestID(r),
		})
		return
	}
	defer a.releaseStreamSlot(ipKey)

	sub := newStreamSubscriber()
	ids := make(map[event.EventType]event.EventSubscriberId, len(types))
	for _, evtType := range types {
		ids[evtType] = a.bus.RegisterSubscriber(evtType, sub)
	}
	defer func() {
		for evtType, id := range ids {
			a.bus.Unsubscribe(evtType, id)
		}
	}()
	a.metrics.activeStreams.Inc()
	defer a.metrics.activeStreams.Dec()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return
	}
	enc := json.NewEncoder(w)
	stopped := a.stopped()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-stopped:
			return
		case evt, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := enc.Encode(evt); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
