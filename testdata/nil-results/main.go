// Package main checks which results may be nil.
package main

type User struct {
	name string
}

var users = map[string]*User{}

// find returns nil for the empty name.
func find(name string) *User {
	if name == "" {
		return nil
	}
	return &User{name: name}
}

// always never returns nil.
func always() *User {
	return &User{name: "root"}
}

// lookup returns nil for missing keys.
func lookup(name string) *User {
	return users[name]
}

// lookupChecked returns the zero value for missing keys as well.
func lookupChecked(name string) (*User, bool) {
	u, ok := users[name]
	return u, ok
}

func main() {
	users["root"] = always()
	find("guest")
	find("")
	lookup("root")
	lookupChecked("guest")
}
