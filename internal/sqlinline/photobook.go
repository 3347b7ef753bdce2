package sqlinline

const photobookColumns = `id::text, user_id, status, title, coalesce(description, ''), locale, images,
    processed_count, total_count, pdf_path, pdf_url, error_message, created_at, started_at, completed_at, updated_at`

const QInsertPhotobookJob = `--sql 79ae2f18-8887-4d19-9123-7059005c318d
insert into photobook_jobs (id, user_id, status, title, description, locale, images, processed_count, total_count, created_at, updated_at)
values ($1::uuid, $2::text, 'queued', $3::text, nullif($4::text, ''), $5::text, $6::jsonb, 0, $7::int, $8, $8);
`

const QSelectPhotobookJob = `--sql dc76725d-a79b-494d-b877-fb9106023fe4
select ` + photobookColumns + `
from photobook_jobs
where id = $1::uuid;
`

const QClaimNextPhotobookJob = `--sql 20e29682-6415-449c-9c7b-16d69d229f35
with next_job as (
    select id
    from photobook_jobs
    where status = 'queued' or (status = 'processing' and updated_at < $1)
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update photobook_jobs
    set status = 'processing',
        started_at = coalesce(started_at, now()),
        processed_count = 0,
        error_message = null,
        updated_at = now()
    where id in (select id from next_job)
    returning ` + photobookColumns + `
)
select * from claimed;
`

const QClaimPhotobookJob = `--sql 56a894a2-886a-4591-b7ad-7f268fbf8b57
update photobook_jobs
set status = 'processing',
    started_at = coalesce(started_at, now()),
    processed_count = 0,
    error_message = null,
    updated_at = now()
where id = $1::uuid
  and (status = 'queued' or (status = 'processing' and updated_at < $2))
returning ` + photobookColumns + `;
`

const QUpdatePhotobookProgress = `--sql cac58b5d-b9bd-4023-82c6-94f17351db3f
update photobook_jobs
set processed_count = $2::int,
    updated_at = now()
where id = $1::uuid;
`

const QCompletePhotobookJob = `--sql 92d26b03-c5d3-4d06-89fd-eb73edda1157
update photobook_jobs
set status = 'completed',
    processed_count = $2::int,
    pdf_path = $3::text,
    pdf_url = $4::text,
    error_message = null,
    completed_at = now(),
    updated_at = now()
where id = $1::uuid;
`

const QFailPhotobookJob = `--sql cab0d774-e13d-445e-9d12-f6c090071712
update photobook_jobs
set status = 'failed',
    processed_count = $2::int,
    error_message = $3::text,
    completed_at = now(),
    updated_at = now()
where id = $1::uuid;
`
