package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v7"
)

// LinkcheckPerm is the permission needed to see the link checker module.
const LinkcheckPerm = "linkcheck.change_link"

// StatusSource reports the state of the background link checker.
type StatusSource interface {
	StatusMessage(ctx context.Context) (string, error)
}

// Linkcheck builds the link checker module. reportURL is the report page;
// status may be nil.
func Linkcheck(reportURL string, status StatusSource) *PermCheckingLinkList {
	l := &PermCheckingLinkList{
		LinkList: LinkList{
			Title: "Linkchecker",
			Children: []Link{
				{Title: "Valid links", URL: reportURL + "?filters=show_valid"},
				{Title: "Broken links", URL: reportURL},
				{Title: "Untested links", URL: reportURL + "?filters=show_unchecked"},
				{Title: "Ignored links", URL: reportURL + "?filters=ignored"},
			},
		},
		RequiredPerms: []string{LinkcheckPerm},
	}
	if status != nil {
		l.PreContentFunc = func(ctx Context) (string, error) {
			return status.StatusMessage(ctx)
		}
	}
	return l
}

// RedisLinkStatus reads the checker state from a redis hash with the fields
// "in_progress", "checked" and "broken".
type RedisLinkStatus struct {
	Client *redis.Client
	Key    string
}

func NewRedisLinkStatus(client *redis.Client) *RedisLinkStatus {
	return &RedisLinkStatus{Client: client, Key: "adminutils:linkcheck:status"}
}

func (s *RedisLinkStatus) StatusMessage(ctx context.Context) (string, error) {
	fields, err := s.Client.WithContext(ctx).HGetAll(s.Key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return statusMessage(fields), nil
}

func statusMessage(fields map[string]string) string {
	if fields["in_progress"] == "1" {
		return "Still checking. Please refresh this page in a short while."
	}
	broken, _ := strconv.Atoi(fields["broken"])
	checked, _ := strconv.Atoi(fields["checked"])
	switch {
	case checked == 0:
		return ""
	case broken == 0:
		return fmt.Sprintf("All %d links are valid.", checked)
	case broken == 1:
		return fmt.Sprintf("1 broken link out of %d.", checked)
	}
	return fmt.Sprintf("%d broken links out of %d.", broken, checked)
}
