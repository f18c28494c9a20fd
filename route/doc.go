// Package route decides whether a navigation target may be shown for the
// current session.
//
// [Guard.Evaluate] maps a session snapshot and a [Target] to one of four
// outcomes: still bootstrapping (render a loading state, no redirect), signed
// out (redirect to the login path carrying the requested path), missing role
// (redirect to the landing path), or authorized. Guest-only targets such as the
// login page send signed-in users to the landing path instead.
//
// # What this package must NOT do
//
//   - Perform I/O or read the session store directly.
//   - Redirect while the session is bootstrapping.
package route
