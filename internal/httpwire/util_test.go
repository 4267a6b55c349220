package httpwire

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/mcpwatch/mcpwatch/internal/memview"
)

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz")

func randomString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

// segment splits input into every possible 3-way split, each returned as a
// slice of MemViews to be fed to Feed one at a time. Exercises the parser's
// resumability against arbitrary TCP segmentation.
func segment(input string) <-chan []memview.MemView {
	out := make(chan []memview.MemView)

	go func() {
		for i := 0; i <= len(input); i++ {
			for j := i; j <= len(input); j++ {
				out <- []memview.MemView{
					memview.New([]byte(input[:i])),
					memview.New([]byte(input[i:j])),
					memview.New([]byte(input[j:])),
				}
			}
		}
		close(out)
	}()

	return out
}

func dump(mvs []memview.MemView) string {
	ret := []string{}
	for _, mv := range mvs {
		ret = append(ret, strconv.Quote(mv.String()))
	}
	return "[" + strings.Join(ret, ",") + "]"
}
