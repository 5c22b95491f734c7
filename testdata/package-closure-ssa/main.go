// Package main checks closures created while initializing package variables
// and the states flowing through an ORM-like API.
package main

import (
	"fmt"
	"regexp"
)

// matchName is built by init and called from main.
var matchName = func() func(tableColumn string) (table, column string) {
	nameMatcher := regexp.MustCompile(`^(?:\W?(\w+?)\W?\.)?(?:(\*)|\W?(\w+?)\W?)$`)
	return func(tableColumn string) (table, column string) {
		if matches := nameMatcher.FindStringSubmatch(tableColumn); len(matches) == 4 {
			table = matches[1]
			star := matches[2]
			columnName := matches[3]
			if star != "" {
				return table, star
			}
			return table, columnName
		}
		return "", tableColumn
	}
}()

type DB struct {
	value string
}

type Association struct {
	db *DB
}

// Create returns its receiver.
func (db *DB) Create(value interface{}) *DB {
	db.assignInterfacesToValue(value)
	return db
}

func (db *DB) assignInterfacesToValue(values ...interface{}) {
	fmt.Printf("assignInterfacesToValue called with %v\n", values)
}

// buildCondition returns the DB the association was created with.
func (a *Association) buildCondition() *DB {
	fmt.Println("buildCondition called")
	return a.db
}

func (a *Association) Find(out interface{}) error {
	a.buildCondition()
	return nil
}

func joins(db *DB, joinType string, query string) *DB {
	fmt.Printf("joins called: %s %s\n", joinType, query)
	return db
}

// Joins always passes a fresh DB.
func Joins(query string) *DB {
	return joins(&DB{}, "INNER JOIN", query)
}

func parseZeroValueTag(tag string) string {
	return "parsed:" + tag
}

func ParseTag(tag string) string {
	return parseZeroValueTag(tag)
}

func (a *Association) saveAssociation(clear bool, values ...interface{}) {
	fmt.Printf("saveAssociation: clear=%v, values=%v\n", clear, values)
}

func (a *Association) Append(values ...interface{}) {
	a.saveAssociation(false, values...)
}

func main() {
	table, column := matchName("users.id")
	fmt.Printf("Parsed: table=%s, column=%s\n", table, column)

	db := &DB{}
	db.Create("test")

	assoc := &Association{db: db}
	assoc.Find(nil)
	assoc.Append("a", "b", "c")

	Joins("users ON users.id = posts.user_id")
	result := ParseTag("zero")
	fmt.Println("Parse result:", result)
}
