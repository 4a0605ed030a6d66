package share

import (
	"fmt"
	"sync"
	"testing"
)

func TestTableBasicOps(t *testing.T) {
	tb := NewTable()

	if _, ok := tb.Get("a.txt"); ok {
		t.Fatal("empty table returned a listing")
	}

	tb.Put(Listing{ID: 1, Name: "a.txt", Path: "/tmp/a.txt"})
	tb.Put(Listing{ID: 2, Name: "b.txt", Path: "/tmp/b.txt"})

	if tb.Len() != 2 {
		t.Fatalf("expected 2 listings, got %d", tb.Len())
	}
	l, ok := tb.Get("a.txt")
	if !ok || l.ID != 1 || l.Path != "/tmp/a.txt" {
		t.Fatalf("unexpected listing: %+v", l)
	}

	tb.Remove("a.txt")
	if _, ok := tb.Get("a.txt"); ok {
		t.Fatal("listing survived Remove")
	}

	tb.Clear()
	if tb.Len() != 0 {
		t.Fatalf("expected empty table after Clear, got %d", tb.Len())
	}
}

func TestTableConcurrentAccess(t *testing.T) {
	tb := NewTable()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				name := fmt.Sprintf("f-%d-%d", n, j)
				tb.Put(Listing{ID: int64(j), Name: name, Path: "/tmp/" + name})
				tb.Get(name)
				tb.Listings()
				tb.Remove(name)
			}
		}(i)
	}
	wg.Wait()

	if tb.Len() != 0 {
		t.Fatalf("expected empty table, got %d entries", tb.Len())
	}
}
