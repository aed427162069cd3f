package handler

import (
	"fmt"
	"net/http"
	"testing"

	"book-review-hub/internal/models"
	"book-review-hub/internal/util"

	"github.com/gin-gonic/gin"
)

func TestBookCRUD(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)

	token, userID := registerUser(t, r, "Alice", "alice@x.com", "secret1")

	// 创建
	bookID := createBook(t, r, token, "三体")

	// 详情（公开接口，无需登录）
	w, env := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("查询详情失败: %d", w.Code)
	}
	book, _ := env.Data["book"].(map[string]interface{})
	if book["title"] != "三体" {
		t.Errorf("书名错误: %v", book["title"])
	}
	if uint(book["user_id"].(float64)) != userID {
		t.Errorf("所有者错误: %v", book["user_id"])
	}

	// 修改
	w, env = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/books/%d", bookID), token, gin.H{
		"title":  "三体（修订版）",
		"author": "刘慈欣",
		"genre":  "科幻",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("修改失败: status=%d body=%s", w.Code, w.Body.String())
	}
	book, _ = env.Data["book"].(map[string]interface{})
	if book["title"] != "三体（修订版）" {
		t.Errorf("修改后书名错误: %v", book["title"])
	}

	// 删除
	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/books/%d", bookID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("删除失败: %d", w.Code)
	}

	// 删除后详情 404
	w, _ = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("已删除的书应 404，实际 %d", w.Code)
	}
}

// 非所有者的修改/删除必须 403，和 401/404 区分开
func TestBookOwnership(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)

	tokenA, _ := registerUser(t, r, "Alice", "alice@x.com", "secret1")
	tokenB, _ := registerUser(t, r, "Bob", "bob@x.com", "secret1")

	bookID := createBook(t, r, tokenA, "活着")

	// 未登录 -> 401
	w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/books/%d", bookID), "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("未登录应 401，实际 %d", w.Code)
	}

	// B 修改 A 的书 -> 403
	w, env := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/books/%d", bookID), tokenB, gin.H{
		"title":  "改名",
		"author": "某人",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("非所有者修改应 403，实际 %d", w.Code)
	}
	if env.Code != util.CodeForbidden {
		t.Errorf("业务码应为 %d，实际 %d", util.CodeForbidden, env.Code)
	}

	// B 删除 A 的书 -> 403
	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/books/%d", bookID), tokenB, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("非所有者删除应 403，实际 %d", w.Code)
	}

	// 不存在的书 -> 404（而不是 403）
	w, _ = doJSON(t, r, http.MethodDelete, "/api/books/99999", tokenB, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("不存在的书应 404，实际 %d", w.Code)
	}

	// 书应原样还在
	var count int64
	db.Model(&models.Book{}).Where("id = ?", bookID).Count(&count)
	if count != 1 {
		t.Error("越权操作不应动到数据")
	}
}

// 删书时级联删除它的所有书评
func TestDeleteBookCascadesReviews(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)

	tokenA, _ := registerUser(t, r, "Alice", "alice@x.com", "secret1")
	tokenB, _ := registerUser(t, r, "Bob", "bob@x.com", "secret1")

	bookID := createBook(t, r, tokenA, "百年孤独")

	w, _ := doJSON(t, r, http.MethodPost, "/api/reviews", tokenB, gin.H{
		"book_id": bookID,
		"rating":  5,
		"comment": "经典",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("创建书评失败: %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/books/%d", bookID), tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("删除书失败: %d", w.Code)
	}

	var count int64
	db.Model(&models.Review{}).Where("book_id = ?", bookID).Count(&count)
	if count != 0 {
		t.Errorf("书评应被级联删除，剩余 %d 条", count)
	}
}

// 分页边界：25 本书，limit=12 => 3 页，第 3 页 1 条
func TestListBooksPagination(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)

	token, _ := registerUser(t, r, "Alice", "alice@x.com", "secret1")
	for i := 1; i <= 25; i++ {
		createBook(t, r, token, fmt.Sprintf("书目 %02d", i))
	}

	// 第 1 页
	w, env := doJSON(t, r, http.MethodGet, "/api/books?page=1&limit=12", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("查询失败: %d", w.Code)
	}
	items, _ := env.Data["items"].([]interface{})
	if len(items) != 12 {
		t.Errorf("第 1 页应 12 条，实际 %d", len(items))
	}
	if env.Data["total_books"].(float64) != 25 {
		t.Errorf("总数应 25，实际 %v", env.Data["total_books"])
	}
	if env.Data["total_pages"].(float64) != 3 {
		t.Errorf("总页数应 3，实际 %v", env.Data["total_pages"])
	}
	if env.Data["has_more"] != true {
		t.Error("第 1 页 has_more 应为 true")
	}

	// 第 3 页只剩 1 条
	_, env = doJSON(t, r, http.MethodGet, "/api/books?page=3&limit=12", "", nil)
	items, _ = env.Data["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("第 3 页应 1 条，实际 %d", len(items))
	}
	if env.Data["has_more"] != false {
		t.Error("最后一页 has_more 应为 false")
	}

	// limit 超出上限时退回默认值
	_, env = doJSON(t, r, http.MethodGet, "/api/books?page=1&limit=999", "", nil)
	items, _ = env.Data["items"].([]interface{})
	if len(items) != 12 {
		t.Errorf("非法 limit 应退回默认 12，实际 %d", len(items))
	}
}

func TestListBooksSearchAndGenre(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)

	token, _ := registerUser(t, r, "Alice", "alice@x.com", "secret1")

	mk := func(title, author, genre string) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/books", token, gin.H{
			"title": title, "author": author, "genre": genre,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("创建失败: %d", w.Code)
		}
	}
	mk("三体", "刘慈欣", "科幻")
	mk("球状闪电", "刘慈欣", "科幻")
	mk("活着", "余华", "文学")

	// 按书名搜索
	_, env := doJSON(t, r, http.MethodGet, "/api/books?search=三体", "", nil)
	items, _ := env.Data["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("按书名搜索应 1 条，实际 %d", len(items))
	}

	// 按作者搜索
	_, env = doJSON(t, r, http.MethodGet, "/api/books?search=刘慈欣", "", nil)
	items, _ = env.Data["items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("按作者搜索应 2 条，实际 %d", len(items))
	}

	// 按分类筛选
	_, env = doJSON(t, r, http.MethodGet, "/api/books?genre=文学", "", nil)
	items, _ = env.Data["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("按分类筛选应 1 条，实际 %d", len(items))
	}
}

// 列表和详情应带评分聚合
func TestBookRatingAggregate(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)

	tokenA, _ := registerUser(t, r, "Alice", "alice@x.com", "secret1")
	tokenB, _ := registerUser(t, r, "Bob", "bob@x.com", "secret1")
	tokenC, _ := registerUser(t, r, "Carol", "carol@x.com", "secret1")

	bookID := createBook(t, r, tokenA, "评分测试")

	for _, tc := range []struct {
		token  string
		rating int
	}{{tokenB, 4}, {tokenC, 5}} {
		w, _ := doJSON(t, r, http.MethodPost, "/api/reviews", tc.token, gin.H{
			"book_id": bookID, "rating": tc.rating,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("创建书评失败: %d", w.Code)
		}
	}

	_, env := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), "", nil)
	book, _ := env.Data["book"].(map[string]interface{})
	if book["avg_rating"].(float64) != 4.5 {
		t.Errorf("平均分应 4.5，实际 %v", book["avg_rating"])
	}
	if book["review_count"].(float64) != 2 {
		t.Errorf("评论数应 2，实际 %v", book["review_count"])
	}
}
