package database

// Requêtes fréquentes du pipeline de commande. gocql prépare et met en cache
// les statements par texte de requête, on centralise donc le CQL ici.
const (
	CQLSelectProduct = `SELECT product_id, name, price, stock, image_urls, is_active, created_at, updated_at
		FROM products WHERE product_id = ?`

	CQLSelectProductStock = `SELECT stock FROM products WHERE product_id = ?`

	// Décrément conditionnel : seule écriture autorisée sur le stock pendant
	// une réservation (ferme la course de survente lecture-puis-écriture).
	CQLReserveStock = `UPDATE products SET stock = ? WHERE product_id = ? IF stock = ?`

	CQLInsertStockMovement = `INSERT INTO stock_movements
		(id, product_id, type, quantity, prev_stock, new_stock, reason, order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	CQLSelectMovementsByProduct = `SELECT id, product_id, type, quantity, prev_stock, new_stock, reason, order_id, created_at
		FROM stock_movements WHERE product_id = ? LIMIT ?`

	CQLSelectMovements = `SELECT id, product_id, type, quantity, prev_stock, new_stock, reason, order_id, created_at
		FROM stock_movements LIMIT ?`

	CQLInsertOrder = `INSERT INTO orders
		(order_id, user_id, items_json, shipping_address_json, payment_method,
		 items_price, tax_price, shipping_price, total_price,
		 is_paid, paid_at, is_delivered, delivered_at, status,
		 payment_intent_id, payment_result_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	CQLSelectOrder = `SELECT order_id, user_id, items_json, shipping_address_json, payment_method,
		items_price, tax_price, shipping_price, total_price,
		is_paid, paid_at, is_delivered, delivered_at, status,
		payment_intent_id, payment_result_json, created_at, updated_at
		FROM orders WHERE order_id = ?`

	CQLSelectOrdersAll = `SELECT order_id, user_id, items_json, shipping_address_json, payment_method,
		items_price, tax_price, shipping_price, total_price,
		is_paid, paid_at, is_delivered, delivered_at, status,
		payment_intent_id, payment_result_json, created_at, updated_at
		FROM orders LIMIT ?`

	CQLUpdateOrder = `UPDATE orders SET
		is_paid = ?, paid_at = ?, is_delivered = ?, delivered_at = ?, status = ?,
		payment_result_json = ?, updated_at = ?
		WHERE order_id = ?`

	CQLDeleteOrder = `DELETE FROM orders WHERE order_id = ?`

	CQLInsertOrderByUser  = `INSERT INTO orders_by_user (user_id, created_at, order_id) VALUES (?, ?, ?)`
	CQLSelectOrdersByUser = `SELECT order_id FROM orders_by_user WHERE user_id = ?`
	CQLDeleteOrderByUser  = `DELETE FROM orders_by_user WHERE user_id = ? AND created_at = ?`

	// Garde d'idempotence : une seule commande par PaymentIntent.
	CQLInsertOrderByIntent = `INSERT INTO orders_by_intent (payment_intent_id, order_id) VALUES (?, ?) IF NOT EXISTS`
	CQLSelectOrderByIntent = `SELECT order_id FROM orders_by_intent WHERE payment_intent_id = ?`
	CQLDeleteOrderByIntent = `DELETE FROM orders_by_intent WHERE payment_intent_id = ?`
)
