// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/jpipd/fault"
	"github.com/bitmark-inc/jpipd/window"
)

// newLimiter - byte rate limiter for one channel
//
// the configured bandwidth (bytes/s) is lowered by a client max
// bandwidth preference (bits/s); zero for both is unlimited
func newLimiter(configured int64, prefs *window.Prefs, burst int) *rate.Limiter {
	limit := configured
	if nil != prefs && 0 != (prefs.Preferred|prefs.Required)&window.PrefMaxBandwidth {
		requested := prefs.MaxBandwidth / 8
		if requested < 1 {
			requested = 1
		}
		if 0 == limit || requested < limit {
			limit = requested
		}
	}
	if 0 == limit {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

// limitN - wait until count bytes may be sent
func limitN(limiter *rate.Limiter, count int) error {
	if count <= 0 {
		return nil
	}
	if count > limiter.Burst() {
		count = limiter.Burst()
	}
	r := limiter.ReserveN(time.Now(), count)
	if !r.OK() {
		return fault.RateLimiting
	}
	time.Sleep(r.Delay())
	return nil
}
