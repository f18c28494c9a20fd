// Package rate provides Redis-backed fixed-window counters that throttle login
// attempts and refresh calls on the reference authentication service.
//
// # Window semantics
//
// A Lua script runs INCR and sets PEXPIRE on the first hit, so a window
// always opens with its TTL. Exhausted budgets surface as [*LimitError] with
// the remaining window. Key prefixes:
//   - gs:rl:login:<email> counts failed logins per email
//   - gs:rl:loginip:<ip> counts failed logins per client IP
//   - gs:rl:refresh:<session> counts refreshes per refresh session
package rate
