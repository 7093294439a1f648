// Package address implements the sub-addressing conventions used to route
// email to and from chat groups.
package address

import (
	"net/mail"
	"strings"
)

// Canonicalize lowercases addr and drops any "+tag" from its local part, so
// "Alice+promo@Example.com" becomes "alice@example.com". Display-name forms
// are reduced to the bare address first. Invalid UTF-8 is replaced up front,
// as lowercasing would, so the result is a fixed point.
func Canonicalize(addr string) string {
	addr = bare(strings.ToValidUTF8(addr, "\uFFFD"))
	local, domain, ok := split(addr)
	if !ok {
		return strings.ToLower(addr)
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	return strings.ToLower(local + "@" + domain)
}

// GroupID extracts the routing tag of a reply address: the part after the
// first '+' of the local part, or the whole local part when untagged.
func GroupID(recipient string) string {
	local, _, ok := split(bare(recipient))
	if !ok {
		return ""
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		return local[i+1:]
	}
	return local
}

// ReplyTo builds the reply address that GroupID maps back to groupID.
func ReplyTo(groupID, prefix, domain string) string {
	if prefix == "" {
		return groupID + "@" + domain
	}
	return prefix + "+" + groupID + "@" + domain
}

// ReplyText keeps the lines before the first blank one, trimmed and joined
// by single spaces. Quoted history and signatures usually follow a blank line.
func ReplyText(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " ")
}

func bare(addr string) string {
	addr = strings.TrimSpace(addr)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		return parsed.Address
	}
	return addr
}

func split(addr string) (local, domain string, ok bool) {
	i := strings.LastIndexByte(addr, '@')
	if i <= 0 || i == len(addr)-1 {
		return "", "", false
	}
	return addr[:i], addr[i+1:], true
}
