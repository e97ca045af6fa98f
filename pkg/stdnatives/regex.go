package stdnatives

import (
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/highesttt/pawn-natives/pkg/natives"
)

const matchTimeout = time.Second

// regexCache keeps compiled patterns, scripts tend to reuse a handful.
type regexCache struct {
	mu sync.Mutex
	m  map[string]*regexp2.Regexp
}

func (c *regexCache) get(pattern string) (*regexp2.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.m[pattern]; ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	if c.m == nil {
		c.m = make(map[string]*regexp2.Regexp)
	}
	c.m[pattern] = re
	return re, nil
}

func registerRegex(reg *natives.Registry) error {
	cache := &regexCache{}
	return declare(reg,
		// regex_match(const subject[], const pattern[])
		declaration{"regex_match", func(subject, pattern string) (bool, error) {
			re, err := cache.get(pattern)
			if err != nil {
				return false, err
			}
			return re.MatchString(subject)
		}},
		// regex_replace(output[], size, const subject[], const pattern[], const replacement[])
		declaration{"regex_replace", func(out *string, subject, pattern, replacement string) (bool, error) {
			re, err := cache.get(pattern)
			if err != nil {
				return false, err
			}
			res, err := re.Replace(subject, replacement, -1, -1)
			if err != nil {
				return false, err
			}
			*out = res
			return true, nil
		}},
	)
}
