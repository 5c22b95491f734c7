// Package lib is a library without main: its exported API forms the entry
// points unless only main, init and test functions are analyzed.
package lib

type Client struct {
	url string
}

// PublicMethod is an entry point outside strict mode.
func (c *Client) PublicMethod() string {
	return c.privateHelper()
}

// privateHelper is reached through PublicMethod.
func (c *Client) privateHelper() string {
	return c.url + "/api"
}

// unusedPrivateMethod is never called.
func (c *Client) unusedPrivateMethod() string {
	return "never called"
}

// PublicFunction is an entry point outside strict mode.
func PublicFunction() string {
	return helperFunction()
}

// NewClient returns a client that is never nil.
func NewClient(url string) *Client {
	return &Client{url: url}
}

// helperFunction is reached through PublicFunction.
func helperFunction() string {
	return "helper"
}

// unusedFunction is never called.
func unusedFunction() string {
	return "never called"
}
