package collector

import (
	"fmt"

	"mailman-exporter/internal/mailman"
)

// Transform selects how the label columns of a result row become label values.
// The set is closed on purpose: these are the only decodings the catalog needs.
type Transform int

const (
	// TransformNone stringifies each label column as-is.
	TransformNone Transform = iota
	// TransformRole decodes the second column as a MemberRole code.
	TransformRole
	// TransformRequestType decodes the second column as a RequestType code.
	TransformRequestType
	// TransformBool renders the second column as a lowercase boolean literal.
	TransformBool
)

// QuerySpec declares one gauge family sourced from a single SQL query.
// The last column of every result row is the numeric value; all preceding
// columns are label values, in the order given by Labels. Queries take no
// parameters and never write.
type QuerySpec struct {
	Name      string
	Help      string
	SQL       string
	Labels    []string
	Transform Transform
}

var catalog = []QuerySpec{
	{
		Name: "mailman_domains_total",
		Help: "Number of configured mail domains",
		SQL:  "SELECT count(*) FROM domain",
	},
	{
		Name:   "mailman_lists_total",
		Help:   "Number of mailing lists",
		SQL:    "SELECT mail_host, count(*) FROM mailinglist GROUP BY 1",
		Labels: []string{"domain"},
	},
	{
		Name:      "mailman_members_total",
		Help:      "Number of memberships",
		SQL:       "SELECT list_id, role, count(*) FROM member GROUP BY 1, 2",
		Labels:    []string{"list_id", "role"},
		Transform: TransformRole,
	},
	{
		Name: "mailman_users_total",
		Help: "Total number of distinct users",
		SQL:  `SELECT count(*) FROM "user"`,
	},
	{
		Name: "mailman_pending_requests_total",
		Help: "Pending moderation requests",
		SQL: `SELECT ml.list_id, r.request_type, count(*)
FROM _request r JOIN mailinglist ml ON r.mailing_list_id = ml.id
GROUP BY 1, 2`,
		Labels:    []string{"list_id", "type"},
		Transform: TransformRequestType,
	},
	{
		Name: "mailman_bouncing_members_total",
		Help: "Members with bounce_score > 0",
		SQL: fmt.Sprintf(`SELECT list_id, count(*) FROM member
WHERE role = %d AND bounce_score > 0
GROUP BY 1`, mailman.RoleMember),
		Labels: []string{"list_id"},
	},
	{
		Name:      "mailman_bounce_events_total",
		Help:      "Bounce events",
		SQL:       "SELECT list_id, processed, count(*) FROM bounceevent GROUP BY 1, 2",
		Labels:    []string{"list_id", "processed"},
		Transform: TransformBool,
	},
	{
		Name: "mailman_bans_total",
		Help: "Number of bans",
		SQL: `SELECT CASE WHEN list_id IS NULL THEN 'site' ELSE 'list' END,
       count(*) FROM ban GROUP BY 1`,
		Labels: []string{"scope"},
	},
	{
		Name:   "mailman_header_matches_total",
		Help:   "Number of header match rules",
		SQL:    "SELECT header, count(*) FROM headermatch GROUP BY 1",
		Labels: []string{"header"},
	},
	{
		Name: "mailman_content_filters_total",
		Help: "Number of content filter rules",
		SQL:  "SELECT count(*) FROM contentfilter",
	},
	{
		Name: "mailman_acceptable_aliases_total",
		Help: "Number of acceptable alias entries",
		SQL:  "SELECT count(*) FROM acceptablealias",
	},
	{
		Name: "mailman_lists_emergency_total",
		Help: "Number of lists in emergency mode",
		SQL:  "SELECT count(*) FROM mailinglist WHERE emergency = true",
	},
	{
		Name: "mailman_addresses_total",
		Help: "Total email addresses",
		SQL:  "SELECT count(*) FROM address",
	},
	{
		Name: "mailman_addresses_verified_total",
		Help: "Verified email addresses",
		SQL:  "SELECT count(*) FROM address WHERE verified_on IS NOT NULL",
	},
	{
		Name: "mailman_pending_tokens_total",
		Help: "Pending confirmation tokens",
		SQL:  "SELECT count(*) FROM pended WHERE expiration_date > now()",
	},
	{
		Name: "mailman_pending_tokens_expired_total",
		Help: "Expired uncleaned pending tokens",
		SQL:  "SELECT count(*) FROM pended WHERE expiration_date <= now()",
	},
	{
		Name: "mailman_messages_total",
		Help: "Messages in message store",
		SQL:  "SELECT count(*) FROM message",
	},
	{
		Name:   "mailman_workflow_states_total",
		Help:   "Active workflow states",
		SQL:    "SELECT step, count(*) FROM workflowstate GROUP BY 1",
		Labels: []string{"step"},
	},
}

// Catalog returns the fixed battery of query specs, in scrape order.
// The slice is shared; callers must not mutate it.
func Catalog() []QuerySpec {
	return catalog
}
