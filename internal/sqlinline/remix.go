package sqlinline

const remixColumns = `id::text, user_id, image_id::text, image_url, prompts, coalesce(provider, ''), status, results,
    error_message, created_at, started_at, completed_at, updated_at`

const QInsertRemixJob = `--sql db0d7730-6c5c-4836-b06d-061f2749b574
insert into remix_jobs (id, user_id, image_id, image_url, prompts, provider, status, results, created_at, updated_at)
values ($1::uuid, $2::text, $3::uuid, $4::text, $5::jsonb, nullif($6::text, ''), 'queued', $7::jsonb, $8, $8);
`

const QSelectRemixJob = `--sql af4f76d5-8235-4008-8cc9-d96af37edc57
select ` + remixColumns + `
from remix_jobs
where id = $1::uuid;
`

// QClaimRemixJob flips queued, failed or stale jobs into processing in one
// statement so only one caller wins. $4 is the updated_at the caller read;
// a row written since then is left alone.
const QClaimRemixJob = `--sql fd491f1f-bf28-43e6-bcb3-d3eb38fd4c93
update remix_jobs
set status = 'processing',
    started_at = coalesce(started_at, now()),
    completed_at = null,
    error_message = null,
    results = $2::jsonb,
    updated_at = now()
where id = $1::uuid
  and updated_at = $4
  and (status in ('queued', 'failed') or (status = 'processing' and updated_at < $3))
returning ` + remixColumns + `;
`

const QUpdateRemixSlot = `--sql 071f3462-db28-4aca-b46c-5ef439a7213d
update remix_jobs
set results = jsonb_set(results, array[$2::text], $3::jsonb, false),
    updated_at = now()
where id = $1::uuid;
`

const QFinishRemixJob = `--sql 4fa9a436-d54b-4e07-baa1-c17fecbf123b
update remix_jobs
set status = $2::text,
    error_message = $3,
    completed_at = $4,
    updated_at = now()
where id = $1::uuid;
`
