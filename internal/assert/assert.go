// Package assert reports bridge invariant violations.
//
// Release builds return the violation as an error so hosts can recover.
// Builds with the bridgedebug tag panic instead, because a violation means
// the bridge itself is wrong.
package assert

// Fail reports err and returns it.
func Fail(err error) error {
	if Enabled {
		panic(err)
	}
	return err
}
