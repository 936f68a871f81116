package main

import (
	"net/http"
	"sort"
	"strings"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/fields"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxTagSuggestions   = 20
	tagAutocompletePath = "/tags/autocomplete/"
)

type tagSuggestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// tagAutocomplete answers the tagging widget with the known book tags that
// start with ?q=, in the shape select2 expects.
func (a *app) tagAutocomplete(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))

	var stored []string
	err := a.db.WithContext(c.Request.Context()).
		Model(&Book{}).
		Where("tags <> ''").
		Distinct().
		Pluck("tags", &stored).Error
	if err != nil {
		a.logger.WithFields(logrus.Fields{"error": err.Error(), "q": q}).Error("tag autocomplete query failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.Payload(apperr.Wrap(err, apperr.ErrDatabase, "")))
		return
	}

	seen := map[string]struct{}{}
	for _, s := range stored {
		for _, tag := range fields.ParseTagInput(s) {
			if strings.HasPrefix(strings.ToLower(tag), q) {
				seen[tag] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > maxTagSuggestions {
		tags = tags[:maxTagSuggestions]
	}

	results := make([]tagSuggestion, 0, len(tags))
	for _, tag := range tags {
		results = append(results, tagSuggestion{ID: tag, Text: tag})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
