package listing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	name string
	note string
}

func rowFields(r row) []string { return []string{r.name, r.note} }

func TestFilterIsCaseInsensitiveSubset(t *testing.T) {
	rows := []row{
		{"Subscription expiring", "warning"},
		{"Token balance", "error"},
		{"Maintenance", "info about SUBSCRIPTION"},
	}

	for _, term := range []string{"subscription", "SUB", "token", "zzz", ""} {
		t.Run(term, func(t *testing.T) {
			got := Filter(rows, term, rowFields)
			assert.LessOrEqual(t, len(got), len(rows))
			for _, r := range got {
				assert.True(t, matches(rowFields(r), strings.ToLower(term)))
			}
		})
	}

	assert.Len(t, Filter(rows, "  subscription ", rowFields), 2)
	assert.Len(t, Filter(rows, "", rowFields), 3)
	assert.Empty(t, Filter(rows, "zzz", rowFields))
}

func TestPaginateClampsAndNormalizes(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	p := Paginate(items, 3, 10)
	assert.Equal(t, []int{20, 21, 22}, p.Items)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 23, p.TotalItems)

	p = Paginate(items, 9, 10)
	assert.Equal(t, 3, p.Page)

	p = Paginate(items, 0, 7)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Equal(t, 1, p.Page)
	assert.Len(t, p.Items, 10)

	empty := Paginate([]int{}, 4, 20)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Empty(t, empty.Items)
}

func TestSplitReproducesInput(t *testing.T) {
	for n := 0; n <= 25; n++ {
		for size := 1; size <= 12; size++ {
			t.Run(fmt.Sprintf("n=%d/size=%d", n, size), func(t *testing.T) {
				items := make([]int, n)
				for i := range items {
					items[i] = i
				}
				pages := Split(items, size)
				require.Len(t, pages, TotalPages(n, size))

				var joined []int
				for _, p := range pages {
					assert.LessOrEqual(t, len(p), size)
					joined = append(joined, p...)
				}
				if n == 0 {
					assert.Empty(t, joined)
					return
				}
				assert.Equal(t, items, joined)
			})
		}
	}

	assert.Nil(t, Split([]int{1}, 0))
}
