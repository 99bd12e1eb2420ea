package soql

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		fields []string
		object string
	}{
		{"simple", "SELECT Id, Name FROM Account", []string{"Id", "Name"}, "Account"},
		{"lowercase", "select id from contact", []string{"id"}, "contact"},
		{"relationship path", "SELECT Id, Account.Owner.Name FROM Contact", []string{"Id", "Account.Owner.Name"}, "Contact"},
		{"where and order", "SELECT Id FROM Contact WHERE LastName = 'O\\'Brien' AND CreatedDate > LAST_N_DAYS:30 ORDER BY Name DESC NULLS LAST LIMIT 10 OFFSET 5", []string{"Id"}, "Contact"},
		{"aggregate alias", "SELECT COUNT(Id) cnt, StageName FROM Opportunity GROUP BY StageName HAVING COUNT(Id) > 1", []string{"cnt", "StageName"}, "Opportunity"},
		{"aggregate no alias", "SELECT MAX(Amount) FROM Opportunity", []string{"MAX(Amount)"}, "Opportunity"},
		{"child subquery", "SELECT Name, (SELECT LastName FROM Contacts) FROM Account", []string{"Name", "Contacts"}, "Account"},
		{"typeof", "SELECT TYPEOF What WHEN Account THEN Phone, Name ELSE Name END, Subject FROM Event", []string{"What", "Subject"}, "Event"},
		{"semi join", "SELECT Id FROM Account WHERE Id IN (SELECT AccountId FROM Contact)", []string{"Id"}, "Account"},
		{"not in list", "SELECT Id FROM Lead WHERE Status NOT IN ('Open', 'Closed')", []string{"Id"}, "Lead"},
		{"keyword object", "SELECT Id FROM Order", []string{"Id"}, "Order"},
		{"object alias", "SELECT a.Name FROM Account a WHERE a.Industry != null", []string{"a.Name"}, "Account"},
		{"datetime literal", "SELECT Id FROM Case WHERE CreatedDate >= 2020-01-01T00:00:00Z AND ClosedDate < 2021-06-30", []string{"Id"}, "Case"},
		{"signed number", "SELECT Id FROM Opportunity WHERE Amount > -100.5 OR (Probability = 0 AND NOT IsWon = true)", []string{"Id"}, "Opportunity"},
		{"bind variables", "SELECT Id FROM Account WHERE Id = :recordId LIMIT :lim", []string{"Id"}, "Account"},
		{"fields function", "SELECT FIELDS(ALL) FROM Account LIMIT 200", []string{"FIELDS(ALL)"}, "Account"},
		{"includes", "SELECT Id FROM Account WHERE Regions__c INCLUDES ('EMEA;APAC', 'NA')", []string{"Id"}, "Account"},
		{"like", "SELECT Id FROM Account WHERE Name LIKE 'Acme%'", []string{"Id"}, "Account"},
		{"with security", "SELECT Id FROM Account WITH SECURITY_ENFORCED", []string{"Id"}, "Account"},
		{"using scope", "SELECT Id FROM Account USING SCOPE Mine", []string{"Id"}, "Account"},
		{"group by rollup", "SELECT LeadSource, COUNT(Name) cnt FROM Lead GROUP BY ROLLUP(LeadSource)", []string{"LeadSource", "cnt"}, "Lead"},
		{"for view", "SELECT Id FROM Contact LIMIT 1 FOR VIEW", []string{"Id"}, "Contact"},
		{"update tracking", "SELECT Title FROM FAQ__kav WHERE Keyword = 'Apex' UPDATE TRACKING", []string{"Title"}, "FAQ__kav"},
		{"multiline", "SELECT\n\tId,\n\tName\nFROM\n\tAccount\n", []string{"Id", "Name"}, "Account"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := Parse(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.fields, q.Fields)
			assert.Equal(t, tc.object, q.Object)
		})
	}
}

func TestParse_Clauses(t *testing.T) {
	q, err := Parse("SELECT Name FROM Account a WHERE Industry = 'Tech' ORDER BY Name ASC, CreatedDate DESC LIMIT 50 OFFSET 10")
	require.NoError(t, err)
	assert.Equal(t, "a", q.Alias)
	assert.Equal(t, "Industry = 'Tech'", q.Where)
	assert.Equal(t, []string{"Name ASC", "CreatedDate DESC"}, q.OrderBy)
	require.NotNil(t, q.Limit)
	require.NotNil(t, q.Offset)
	assert.Equal(t, 50, *q.Limit)
	assert.Equal(t, 10, *q.Offset)

	q, err = Parse("SELECT Id FROM Account LIMIT :n")
	require.NoError(t, err)
	assert.Nil(t, q.Limit)
}

func TestParse_Subquery(t *testing.T) {
	q, err := Parse("SELECT Name, (SELECT FirstName, LastName FROM Contacts WHERE Email != null) FROM Account")
	require.NoError(t, err)
	require.Len(t, q.Items, 2)
	sub := q.Items[1].Subquery
	require.NotNil(t, sub)
	assert.Equal(t, "Contacts", sub.Object)
	assert.Equal(t, []string{"FirstName", "LastName"}, sub.Fields)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		query string
		near  string
	}{
		{"empty", "", ""},
		{"not select", "DELETE FROM Account", "DELETE"},
		{"no fields", "SELECT FROM Account", "FROM"},
		{"missing from", "SELECT Id Account", "Account"},
		{"trailing comma", "SELECT Id, FROM Account", "FROM"},
		{"no object", "SELECT Id FROM", ""},
		{"dangling where", "SELECT Id FROM Account WHERE", ""},
		{"dangling or", "SELECT Id FROM Account WHERE Name = 'a' OR", ""},
		{"missing operator", "SELECT Id FROM Account WHERE Name 'a'", "'a'"},
		{"fractional limit", "SELECT Id FROM Account LIMIT 1.5", "1.5"},
		{"trailing garbage", "SELECT Id FROM Account a b", "b"},
		{"unbalanced paren", "SELECT Id FROM Account WHERE (Name = 'a'", ""},
		{"nested subquery", "SELECT Name, (SELECT Id, (SELECT Id FROM Notes) FROM Contacts) FROM Account", "("},
		{"typeof without when", "SELECT TYPEOF What END FROM Event", "END"},
		{"bad for", "SELECT Id FROM Account FOR DELETE", "DELETE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.query)
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.near, pe.Near)
			assert.True(t, strings.HasPrefix(err.Error(), "soql: "))
		})
	}
}

func TestParse_LexicalErrors(t *testing.T) {
	q := "SELECT Id FROM Account WHERE Name = 'abc"
	_, err := Parse(q)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, strings.Index(q, "'"), pe.Pos)
	assert.Contains(t, pe.Msg, "unterminated")

	q = "SELECT Id FROM Account WHERE Name = 'a\\qb'"
	_, err = Parse(q)
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Msg, "escape")

	q = "SELECT Id FROM Account; DROP"
	_, err = Parse(q)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, strings.Index(q, ";"), pe.Pos)
}

func TestParseError_Position(t *testing.T) {
	q := "SELECT Id, Name FROM Account WHERE Name = = 'x'"
	_, err := Parse(q)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, strings.LastIndex(q, "="), pe.Pos)
	assert.Contains(t, err.Error(), "position")
}
