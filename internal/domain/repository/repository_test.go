package repository

import "testing"

func TestNewPagination_Clamps(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, 20},
		{-3, 500, 1, 100},
		{2, 10, 2, 10},
	}
	for _, c := range cases {
		p := NewPagination(c.page, c.size)
		if p.Page != c.wantPage || p.PageSize != c.wantSize {
			t.Errorf("NewPagination(%d,%d) = %+v", c.page, c.size, p)
		}
	}
	if off := NewPagination(3, 10).Offset(); off != 20 {
		t.Errorf("Offset = %d, want 20", off)
	}
}

func TestNewPagedResult_TotalPages(t *testing.T) {
	r := NewPagedResult[int](nil, 21, NewPagination(1, 10))
	if r.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", r.TotalPages)
	}
	if r.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
}
