// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package identity

import (
	"bufio"
	"embed"
	"strings"
	"unicode"
)

//go:embed common_passwords.txt
var commonPasswordsFS embed.FS

var commonPasswords = loadCommonPasswords()

func loadCommonPasswords() map[string]struct{} {
	passwords := make(map[string]struct{})
	file, err := commonPasswordsFS.Open("common_passwords.txt")
	if err != nil {
		return passwords
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if p := strings.ToLower(strings.TrimSpace(scanner.Text())); p != "" {
			passwords[p] = struct{}{}
		}
	}
	return passwords
}

// Password rule codes. Handlers use them as translation keys.
const (
	RuleMinLength       = "password_min_length"
	RuleEntirelyNumeric = "password_entirely_numeric"
	RuleCommon          = "password_common"
	RuleTooSimilar      = "password_too_similar"
)

// PasswordPolicy describes the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength            int
	CheckCommonPasswords bool
	CheckUserSimilarity  bool
}

// DefaultPasswordPolicy returns the policy used for member passwords.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:            12,
		CheckCommonPasswords: true,
		CheckUserSimilarity:  true,
	}
}

// PasswordValidationError lists the rules a password violated.
type PasswordValidationError struct {
	Rules     []string
	MinLength int
}

func (e *PasswordValidationError) Error() string {
	if len(e.Rules) == 0 {
		return "password validation failed"
	}
	return "password violates " + strings.Join(e.Rules, ", ")
}

// Check returns a *PasswordValidationError if the password breaks any rule.
// userAttributes are values the password must not resemble, such as the email.
func (p *PasswordPolicy) Check(password string, userAttributes ...string) error {
	var rules []string

	if len([]rune(password)) < p.MinLength {
		rules = append(rules, RuleMinLength)
	}
	if isEntirelyNumeric(password) {
		rules = append(rules, RuleEntirelyNumeric)
	}
	if p.CheckCommonPasswords && isCommonPassword(password) {
		rules = append(rules, RuleCommon)
	}
	if p.CheckUserSimilarity && isSimilarToUserAttributes(password, userAttributes) {
		rules = append(rules, RuleTooSimilar)
	}

	if len(rules) > 0 {
		return &PasswordValidationError{Rules: rules, MinLength: p.MinLength}
	}
	return nil
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return password != ""
}

func isCommonPassword(password string) bool {
	_, exists := commonPasswords[strings.ToLower(password)]
	return exists
}

// isSimilarToUserAttributes compares the password with each attribute and,
// for emails, with the local part.
func isSimilarToUserAttributes(password string, attributes []string) bool {
	passwordLower := strings.ToLower(password)

	for _, attr := range attributes {
		candidates := []string{strings.ToLower(attr)}
		if local, _, ok := strings.Cut(candidates[0], "@"); ok {
			candidates = append(candidates, local)
		}
		for _, c := range candidates {
			if len(c) < 3 {
				continue
			}
			if strings.Contains(passwordLower, c) || strings.Contains(c, passwordLower) {
				return true
			}
			if similarity(passwordLower, c) > 0.7 {
				return true
			}
		}
	}

	return false
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return float64(longestCommonSubsequence(a, b)) / float64(max(len(a), len(b)))
}

func longestCommonSubsequence(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
