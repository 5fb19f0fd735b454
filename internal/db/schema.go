package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- INVENTORY TABLE (one row per batch)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS inventory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON inventory TYPE string;
    DEFINE FIELD IF NOT EXISTS item_name ON inventory TYPE string;
    DEFINE FIELD IF NOT EXISTS brand ON inventory TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS quantity ON inventory TYPE float ASSERT $value >= 0;
    DEFINE FIELD IF NOT EXISTS total_volume ON inventory TYPE float;
    DEFINE FIELD IF NOT EXISTS unit ON inventory TYPE string;
    DEFINE FIELD IF NOT EXISTS category ON inventory TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS expiry_date ON inventory TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS is_open ON inventory TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS location ON inventory TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON inventory TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS inventory_user ON inventory FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS inventory_user_item ON inventory FIELDS user_id, item_name;

    -- ==========================================================================
    -- TRANSACTION LOG TABLE (append-only audit trail)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS transaction_logs SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON transaction_logs TYPE string;
    DEFINE FIELD IF NOT EXISTS intent ON transaction_logs TYPE string;
    DEFINE FIELD IF NOT EXISTS raw_input ON transaction_logs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS ai_reasoning ON transaction_logs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS operation_details ON transaction_logs TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON transaction_logs TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS txlog_user ON transaction_logs FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS txlog_created ON transaction_logs FIELDS created_at;

    -- ==========================================================================
    -- CONVERSATION TABLE (per-thread dialogue checkpoints)
    -- ==========================================================================
    -- checkpoint_json carries the serialized ConversationState. Stored as a
    -- JSON string rather than a nested object so the Go-side polymorphic
    -- pending-operation encoding survives the round trip untouched.
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON conversation TYPE string DEFAULT "active";
    DEFINE FIELD IF NOT EXISTS checkpoint_json ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_user ON conversation FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS conversation_status ON conversation FIELDS status;
`
