package classifier

import (
	"strings"

	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/utils"
)

type email struct {
	sender  string
	subject string
	body    string
}

type rule struct {
	category enum.Category
	match    func(e email) bool
}

var (
	spamKeywords = []string{
		"free money", "!!!", "$$$", "winner", "congratulations you have won", "claim your prize",
		"urgent action required", "limited time offer", "click here now", "viagra", "cialis", "pharmacy",
	}
	socialDomains = []string{
		"facebookmail.com", "twitter.com", "linkedin.com", "instagram.com", "pinterest.com",
		"youtube.com", "nextdoor.com",
	}
	socialSubjects = []string{
		"mentioned you", "tagged you", "commented on your post", "new connection request", "event reminder",
	}
	promotionBodyMarkers = []string{
		"unsubscribe", "view this email in your browser", "no-reply@", "newsletter@",
	}
	promotionKeywords = []string{"promotion", "deal", "offer", "discount", "sale"}
	updateKeywords    = []string{
		"invoice", "bill", "statement", "order confirmation", "shipping update", "your order",
		"receipt", "payment reminder", "account activity", "security alert",
	}
	forumDomains  = []string{"googlegroups.com", "discoursemail.com"}
	forumSubjects = []string{"digest", "discussion update", "new post in"}
	financeTerms  = []string{"bank statement", "payment confirmation", "financial update"}
)

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{enum.CategorySpam, func(e email) bool {
		return utils.ContainsAnyFold(e.subject, spamKeywords) || utils.ContainsAnyFold(e.body, spamKeywords)
	}},
	{enum.CategorySocial, func(e email) bool {
		return utils.ContainsAnyFold(e.sender, socialDomains) || utils.ContainsAnyFold(e.subject, socialSubjects)
	}},
	{enum.CategoryNewsletters, func(e email) bool {
		return utils.ContainsAnyFold(e.subject, []string{"newsletter"}) || utils.ContainsAnyFold(e.sender, []string{"newsletter"})
	}},
	{enum.CategoryPromotions, func(e email) bool {
		return utils.ContainsAnyFold(e.body, promotionBodyMarkers)
	}},
	{enum.CategoryPromotions, func(e email) bool {
		return utils.ContainsAnyFold(e.subject, promotionKeywords) || utils.ContainsAnyFold(e.sender, promotionKeywords)
	}},
	{enum.CategoryUpdates, func(e email) bool {
		return utils.ContainsAnyFold(e.subject, updateKeywords) || utils.ContainsAnyFold(e.sender, updateKeywords)
	}},
	{enum.CategoryForums, func(e email) bool {
		return utils.ContainsAnyFold(e.sender, forumDomains) || utils.ContainsAnyFold(e.subject, forumSubjects)
	}},
	{enum.CategoryFinance, func(e email) bool {
		return utils.ContainsAnyFold(e.subject, financeTerms)
	}},
}

// classifyByRules never fails; unmatched mail lands in the default category.
func classifyByRules(sender, subject, body string) enum.Category {
	e := email{
		sender:  strings.ToLower(sender),
		subject: strings.ToLower(subject),
		body:    strings.ToLower(body),
	}
	for _, r := range rules {
		if r.match(e) {
			return r.category
		}
	}
	return enum.DefaultCategory
}
