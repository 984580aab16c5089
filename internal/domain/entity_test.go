package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEntitiesDropsBlanksAndDuplicates(t *testing.T) {
	entities := NewEntities([]string{"order", " ", "customer", "order", " product "})

	assert.Equal(t, []Entity{{Name: "order"}, {Name: "customer"}, {Name: "product"}}, entities)
}

func TestEntityOwns(t *testing.T) {
	order := Entity{Name: "order"}

	cases := map[string]bool{
		"order-2024.csv":               true,
		"/userfile/order/order_01.csv": true,
		"invoice-2024.csv":             false,
		"Order-2024.csv":               false,
		"/userfile/order/xorder-1.csv": false,
	}
	for entry, want := range cases {
		assert.Equalf(t, want, order.Owns(entry), "entry %q", entry)
	}

	assert.False(t, Entity{}.Owns("anything.csv"))
}

func TestStatusTags(t *testing.T) {
	assert.Equal(t, "retrieved_from_ftp_order", StatusRetrieved("ftp", "order"))
	assert.Equal(t, "uploaded_to_hdfs_order:/a/b.csv", StatusUploaded("hdfs", "order", "/a/b.csv"))
	assert.Equal(t, "no_files_found_order", StatusNoFilesFound("order"))
	assert.Equal(t, "cancelled_order", StatusCancelled("order"))
}
